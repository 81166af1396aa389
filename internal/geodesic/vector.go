package geodesic

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 is a point or direction in world space. Y is up, the sphere is
// centred on the origin. The arithmetic is done in mgl64; the struct form
// keeps the x/y/z JSON shape clients expect.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromVec converts an mgl64 vector.
func FromVec(v mgl64.Vec3) Vector3 {
	return Vector3{X: v[0], Y: v[1], Z: v[2]}
}

// Vec converts v to an mgl64 vector.
func (v Vector3) Vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return FromVec(v.Vec().Add(o.Vec()))
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return FromVec(v.Vec().Sub(o.Vec()))
}

func (v Vector3) Scale(s float64) Vector3 {
	return FromVec(v.Vec().Mul(s))
}

func (v Vector3) Dot(o Vector3) float64 {
	return v.Vec().Dot(o.Vec())
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return FromVec(v.Vec().Cross(o.Vec()))
}

// Length returns the Euclidean norm of the vector.
func (v Vector3) Length() float64 {
	return v.Vec().Len()
}

// DistanceTo returns the straight-line distance between two points.
func (v Vector3) DistanceTo(o Vector3) float64 {
	return v.Vec().Sub(o.Vec()).Len()
}

// Normalize returns the unit vector in the direction of v, or the zero
// vector if v has no length.
func (v Vector3) Normalize() Vector3 {
	if v.Length() == 0 {
		return Vector3{}
	}
	return FromVec(v.Vec().Normalize())
}

// Negate returns -v.
func (v Vector3) Negate() Vector3 {
	return v.Scale(-1)
}

// Perpendicular returns some unit vector orthogonal to v.
func (v Vector3) Perpendicular() Vector3 {
	axis := Vector3{Y: 1}
	if math.Abs(v.Normalize().Y) > 0.9 {
		axis = Vector3{X: 1}
	}
	return v.Cross(axis).Normalize()
}
