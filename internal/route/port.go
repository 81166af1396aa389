package route

import (
	"fmt"

	"github.com/yegors/skylanes/internal/geodesic"
)

// Port is a named location that flights depart from and arrive at
type Port struct {
	Ident string  `json:"ident,omitempty"` // Airport code, when known
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// InvalidPortError reports a port whose coordinates cannot be placed on
// the sphere. It means the upstream data is corrupt.
type InvalidPortError struct {
	Port Port
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid coordinates for port %q: lat=%v lon=%v", e.Port.Name, e.Port.Lat, e.Port.Lon)
}

// Validate checks that the port's coordinates are finite and in range
func (p Port) Validate() error {
	if !geodesic.ValidLatLon(p.Lat, p.Lon) {
		return &InvalidPortError{Port: p}
	}
	return nil
}

// Ground returns the port's position on a sphere of the given radius
func (p Port) Ground(radius float64) geodesic.Vector3 {
	return geodesic.Project(p.Lat, p.Lon, radius)
}

// ChordTo returns the straight-line distance between the ground positions
// of two ports on a sphere of the given radius
func (p Port) ChordTo(o Port, radius float64) float64 {
	return geodesic.ChordDistance(p.Lat, p.Lon, o.Lat, o.Lon, radius)
}
