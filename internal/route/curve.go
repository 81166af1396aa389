package route

import (
	"math"

	"github.com/yegors/skylanes/internal/geodesic"
)

// curve is a uniform Catmull-Rom spline through a fixed set of points,
// parameterised over [0,1] with equal parameter spacing per segment.
type curve []geodesic.Vector3

// locate maps t in [0,1] to a segment index and a local parameter.
func (c curve) locate(t float64) (int, float64) {
	n := len(c) - 1
	t = math.Max(0, math.Min(1, t))
	f := t * float64(n)
	i := int(math.Floor(f))
	if i >= n {
		i = n - 1
	}
	return i, f - float64(i)
}

// controls returns the four control points around segment i, clamping at
// the ends.
func (c curve) controls(i int) (p0, p1, p2, p3 geodesic.Vector3) {
	last := len(c) - 1
	at := func(k int) geodesic.Vector3 {
		return c[max(0, min(last, k))]
	}
	return at(i - 1), at(i), at(i + 1), at(i + 2)
}

func (c curve) pointAt(t float64) geodesic.Vector3 {
	if len(c) == 1 {
		return c[0]
	}
	i, u := c.locate(t)
	p0, p1, p2, p3 := c.controls(i)
	u2, u3 := u*u, u*u*u
	// 0.5 * (2p1 + (-p0+p2)u + (2p0-5p1+4p2-p3)u² + (-p0+3p1-3p2+p3)u³)
	a := p1.Scale(2)
	b := p2.Sub(p0).Scale(u)
	c2 := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(u2)
	d := p0.Negate().Add(p1.Scale(3)).Sub(p2.Scale(3)).Add(p3).Scale(u3)
	return a.Add(b).Add(c2).Add(d).Scale(0.5)
}

// tangentAt returns the unit direction of travel at t.
func (c curve) tangentAt(t float64) geodesic.Vector3 {
	if len(c) < 2 {
		return geodesic.Vector3{}
	}
	i, u := c.locate(t)
	p0, p1, p2, p3 := c.controls(i)
	u2 := u * u
	// Derivative of the expression in pointAt
	b := p2.Sub(p0)
	c2 := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(2 * u)
	d := p0.Negate().Add(p1.Scale(3)).Sub(p2.Scale(3)).Add(p3).Scale(3 * u2)
	tan := b.Add(c2).Add(d).Scale(0.5)
	if tan.Length() < 1e-12 {
		tan = p2.Sub(p1)
	}
	return tan.Normalize()
}
