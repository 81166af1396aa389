package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/pkg/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPortStorageReplaceAll(t *testing.T) {
	store, err := NewPortStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	first := []route.Port{
		{Ident: "KJFK", Name: "John F Kennedy International Airport", Lat: 40.6398, Lon: -73.7789},
		{Ident: "EGLL", Name: "London Heathrow Airport", Lat: 51.4706, Lon: -0.4619},
	}
	if err := store.ReplaceAll(first); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := store.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Ident != "EGLL" || got[1].Ident != "KJFK" {
		t.Fatalf("GetAll() = %+v", got)
	}
	if got[1].Lat != 40.6398 || got[1].Lon != -73.7789 {
		t.Errorf("coordinates not preserved: %+v", got[1])
	}

	if err := store.ReplaceAll([]route.Port{{Ident: "YSSY", Name: "Sydney", Lat: -33.9461, Lon: 151.177}}); err != nil {
		t.Fatal(err)
	}
	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() = %d after replace, want 1", n)
	}
}

func TestFlightLogInsertAndQuery(t *testing.T) {
	store, err := NewFlightLogStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*FlightRecord{
		{FlightID: "a", Callsign: "SKY001", Route: []string{"Frankfurt", "Dubai"}, Legs: 1,
			DepartedAt: base, LandedAt: base.Add(10 * time.Second), CompletedAt: base.Add(11 * time.Second)},
		{FlightID: "b", Callsign: "SKY002", Route: []string{"Frankfurt", "Dubai", "Changi"}, Legs: 2,
			DepartedAt: base, CompletedAt: base.Add(20 * time.Second)},
		{FlightID: "c", Callsign: "SKY001", Route: []string{"Sydney", "Changi"}, Legs: 1,
			DepartedAt: base, LandedAt: base.Add(25 * time.Second), CompletedAt: base.Add(30 * time.Second)},
	}
	for _, r := range records {
		id, err := store.Insert(r)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id <= 0 {
			t.Errorf("Insert returned id %d", id)
		}
	}

	recent, err := store.GetRecent(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 || recent[0].FlightID != "c" || recent[2].FlightID != "a" {
		t.Fatalf("GetRecent order wrong: %v", flightIDs(recent))
	}
	if got := recent[1]; len(got.Route) != 3 || got.Route[2] != "Changi" || !got.LandedAt.IsZero() {
		t.Errorf("record b round-tripped as %+v", got)
	}
	if !recent[2].LandedAt.Equal(base.Add(10 * time.Second)) {
		t.Errorf("landed_at %v", recent[2].LandedAt)
	}

	page, err := store.GetRecent(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].FlightID != "b" {
		t.Errorf("GetRecent(1, 1) = %v", flightIDs(page))
	}

	byCallsign, err := store.GetByCallsign("SKY001", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byCallsign) != 2 {
		t.Errorf("GetByCallsign returned %d records", len(byCallsign))
	}
}

func flightIDs(records []*FlightRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.FlightID
	}
	return ids
}
