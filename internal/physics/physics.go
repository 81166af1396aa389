package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"

	"github.com/yegors/skylanes/internal/geodesic"
)

// Constants
const (
	FeetToMeters = 0.3048
	MetersToFeet = 1 / FeetToMeters
)

// pole is the world-space axis through the north pole
var pole = geodesic.Vector3{Y: 1}

// NormalizeHeading wraps a heading in degrees into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// LocalFrame returns the unit north and east vectors of the tangent plane
// at position. ok is false at the poles where north is undefined.
func LocalFrame(position geodesic.Vector3) (north, east geodesic.Vector3, ok bool) {
	up := position.Normalize()
	north = pole.Sub(up.Scale(up.Dot(pole)))
	if north.Length() < 1e-9 {
		return geodesic.Vector3{}, geodesic.Vector3{}, false
	}
	north = north.Normalize()
	east = north.Cross(up)
	return north, east, true
}

// TrueHeading returns the compass heading in degrees (0 = north, 90 = east)
// of a direction of travel at the given position
func TrueHeading(position, direction geodesic.Vector3) float64 {
	north, east, ok := LocalFrame(position)
	if !ok {
		return 0
	}
	rad := math.Atan2(direction.Dot(east), direction.Dot(north))
	return NormalizeHeading(geodesic.Degrees(rad))
}

// HeadingToVector converts a compass heading at a position into a unit
// direction in the local tangent plane
func HeadingToVector(position geodesic.Vector3, headingDeg float64) geodesic.Vector3 {
	north, east, ok := LocalFrame(position)
	if !ok {
		return geodesic.Vector3{}
	}
	s, c := math.Sincos(geodesic.Radians(headingDeg))
	return north.Scale(c).Add(east.Scale(s))
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model's validity window; report no variation
		return 0.0
	}

	return mag.D()
}

// MagneticHeading converts a true heading to magnetic using the declination
// (+East, -West)
func MagneticHeading(trueHeading, declination float64) float64 {
	return NormalizeHeading(trueHeading - declination)
}
