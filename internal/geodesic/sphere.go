package geodesic

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ArcProfile bounds how far an arc bulges above the sphere at its midpoint,
// in sphere-radius units. The bulge grows linearly with the angular length
// of the arc.
type ArcProfile struct {
	MinHeight float64
	MaxHeight float64
}

var (
	// MainArc is used for primary connections.
	MainArc = ArcProfile{MinHeight: 0.01, MaxHeight: 0.03}
	// MinorArc is used for secondary, flatter connections.
	MinorArc = ArcProfile{MinHeight: 0.003, MaxHeight: 0.015}
)

// Height returns the bulge for the given distance factor in [0,1].
func (p ArcProfile) Height(distanceFactor float64) float64 {
	return p.MinHeight + (p.MaxHeight-p.MinHeight)*clamp(distanceFactor, 0, 1)
}

func Radians(deg float64) float64 { return deg * math.Pi / 180 }
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Project converts latitude/longitude in degrees to a point on a sphere of
// the given radius.
func Project(lat, lon, radius float64) Vector3 {
	phi := Radians(90 - lat)
	theta := Radians(lon + 180)
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	return Vector3{
		X: -radius * sinPhi * cosTheta,
		Y: radius * cosPhi,
		Z: radius * sinPhi * sinTheta,
	}
}

// Unproject is the inverse of Project. It returns latitude and longitude in
// degrees and the distance of p from the centre.
func Unproject(p Vector3) (lat, lon, radius float64) {
	radius = p.Length()
	if radius == 0 {
		return 0, 0, 0
	}
	phi := math.Acos(clamp(p.Y/radius, -1, 1))
	theta := math.Atan2(p.Z, -p.X)
	lat = 90 - Degrees(phi)
	lon = Degrees(theta) - 180
	if lon < -180 {
		lon += 360
	}
	return lat, lon, radius
}

// AngularDistance returns the central angle in radians between two
// latitude/longitude pairs (haversine).
func AngularDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := Radians(lat2 - lat1)
	dLon := Radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(Radians(lat1))*math.Cos(Radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(math.Max(0, 1-a)))
}

// ChordDistance returns the straight-line distance between the ground
// projections of two latitude/longitude pairs on a sphere of the given
// radius.
func ChordDistance(lat1, lon1, lat2, lon2, radius float64) float64 {
	return Project(lat1, lon1, radius).DistanceTo(Project(lat2, lon2, radius))
}

// ArcPoints returns segments+1 points along the great circle from
// (lat1,lon1) to (lat2,lon2). Each point is lifted above baseRadius by
// sin(t·π) times the profile height, so the arc starts and ends on the
// sphere and peaks at its midpoint. With forceLongWay the arc follows the
// complementary direction around the same great circle.
func ArcPoints(lat1, lon1, lat2, lon2, baseRadius float64, segments int, profile ArcProfile, forceLongWay bool) []Vector3 {
	if segments < 1 {
		segments = 1
	}

	a := Project(lat1, lon1, 1)
	b := Project(lat2, lon2, 1)

	distanceFactor := clamp(AngularDistance(lat1, lon1, lat2, lon2)/math.Pi, 0, 1)
	arcHeight := profile.Height(distanceFactor) * baseRadius

	// Rotation axis normal to the great-circle plane through a and b.
	omega := math.Atan2(a.Cross(b).Length(), a.Dot(b))
	axis := a.Cross(b)
	if axis.Length() < 1e-12 {
		// Coincident or antipodal endpoints: any great circle through a
		// works.
		axis = a.Cross(a.Perpendicular())
	}
	axis = axis.Normalize()

	sweep := omega
	if forceLongWay {
		sweep = omega - 2*math.Pi
	}

	start := a.Vec()
	n := axis.Vec()
	points := make([]Vector3, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		dir := FromVec(mgl64.QuatRotate(t*sweep, n).Rotate(start)).Normalize()
		lift := math.Sin(t*math.Pi) * arcHeight
		points[i] = dir.Scale(baseRadius + lift)
	}
	// Pin the ends exactly to the ports.
	points[0] = a.Scale(baseRadius)
	points[segments] = b.Scale(baseRadius)

	return points
}

// ValidLatLon reports whether lat and lon are finite and in range.
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
