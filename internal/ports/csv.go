package ports

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/yegors/skylanes/internal/route"
)

//go:embed data/airports.csv
var builtin embed.FS

// LoadResult is a parsed port catalogue
type LoadResult struct {
	Ports   []route.Port
	Skipped int // Rows dropped for bad coordinates
}

// LoadCSV parses an OurAirports-format CSV. Rows whose type is not in
// types are ignored; an empty types list accepts every row. Rows with
// unparseable or out-of-range coordinates are counted in Skipped.
func LoadCSV(r io.Reader, types []string) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := func(name string) int {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		return -1
	}

	identIdx := idx("ident")
	typeIdx := idx("type")
	nameIdx := idx("name")
	latIdx := idx("latitude_deg")
	lonIdx := idx("longitude_deg")
	for col, i := range map[string]int{"ident": identIdx, "name": nameIdx, "latitude_deg": latIdx, "longitude_deg": lonIdx} {
		if i < 0 {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	width := max(identIdx, typeIdx, nameIdx, latIdx, lonIdx) + 1

	result := &LoadResult{}
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < width {
			result.Skipped++
			continue
		}
		if len(types) > 0 && (typeIdx < 0 || !slices.Contains(types, rec[typeIdx])) {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		port := route.Port{
			Ident: strings.TrimSpace(rec[identIdx]),
			Name:  strings.TrimSpace(rec[nameIdx]),
			Lat:   lat,
			Lon:   lon,
		}
		if latErr != nil || lonErr != nil || port.Validate() != nil || port.Ident == "" || seen[port.Ident] {
			result.Skipped++
			continue
		}
		seen[port.Ident] = true
		result.Ports = append(result.Ports, port)
	}

	return result, nil
}

// LoadCSVFile parses the CSV at path. An empty path loads the built-in
// catalogue of major airports.
func LoadCSVFile(path string, types []string) (*LoadResult, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if path == "" {
		f, err = builtin.Open("data/airports.csv")
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ports file: %w", err)
	}
	defer f.Close()

	result, err := LoadCSV(f, types)
	if err != nil {
		if path == "" {
			path = "built-in catalogue"
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return result, nil
}
