package route

import (
	"fmt"
	"math"
	"slices"

	"github.com/yegors/skylanes/internal/geodesic"
)

// Params controls the shape and pacing of generated legs. Altitudes are in
// world units; distance thresholds are in sphere radii.
type Params struct {
	Radius            float64             // Sphere radius in world units
	MinAltitude       float64             // Cruise altitude for the shortest legs
	MaxAltitude       float64             // Cruise altitude for legs at or beyond ReferenceDistance
	Segments          int                 // Curve segments per leg (points = Segments+1)
	ReferenceDistance float64             // Chord length (radii) that maps to MaxAltitude
	LongLegThreshold  float64             // Chord length (radii) above which LongLegSpeed applies
	ShortLegSpeed     float64             // Progress per tick for short legs
	LongLegSpeed      float64             // Progress per tick for long legs
	Arc               geodesic.ArcProfile // Bulge used when sampling the great circle
}

// DefaultParams returns the reference tuning on a unit sphere
func DefaultParams() Params {
	return Params{
		Radius:            1,
		MinAltitude:       0.02,
		MaxAltitude:       0.08,
		Segments:          60,
		ReferenceDistance: 1.5,
		LongLegThreshold:  1.5,
		ShortLegSpeed:     0.0020,
		LongLegSpeed:      0.0015,
		Arc:               geodesic.MainArc,
	}
}

// Leg is one directed hop of a route. It is immutable once built.
type Leg struct {
	From           Port
	To             Port
	CurvePoints    []geodesic.Vector3
	CruiseAltitude float64
	Speed          float64
	CruiseStart    float64 // Progress at which the climb ends
	CruiseEnd      float64 // Progress at which the descent begins
	Chord          float64 // Ground chord length in world units

	radius float64
	curve  curve
}

// PointAt returns the position on the leg at progress t in [0,1]
func (l *Leg) PointAt(t float64) geodesic.Vector3 {
	return l.curve.pointAt(t)
}

// TangentAt returns the unit direction of travel at progress t
func (l *Leg) TangentAt(t float64) geodesic.Vector3 {
	return l.curve.tangentAt(t)
}

// AltitudeAt returns the altitude above the sphere at progress t
func (l *Leg) AltitudeAt(t float64) float64 {
	return altitudeProfile(t, l.CruiseAltitude, l.CruiseStart, l.CruiseEnd)
}

// Radius returns the sphere radius the leg was built for
func (l *Leg) Radius() float64 {
	return l.radius
}

// altitudeProfile eases up to cruise with a sine ease-out, holds, then
// comes back down with a quadratic ease-in.
func altitudeProfile(t, cruise, cruiseStart, cruiseEnd float64) float64 {
	t = math.Max(0, math.Min(1, t))
	switch {
	case t < cruiseStart:
		return cruise * math.Sin((t/cruiseStart)*math.Pi/2)
	case t > cruiseEnd:
		u := (t - cruiseEnd) / (1 - cruiseEnd)
		return cruise * (1 - u*u)
	default:
		return cruise
	}
}

// Builder turns ports into legs
type Builder struct {
	params Params
}

// NewBuilder creates a builder with the given parameters
func NewBuilder(params Params) *Builder {
	return &Builder{params: params}
}

// Params returns the builder's parameters
func (b *Builder) Params() Params {
	return b.params
}

// NormalizedDistance maps a ground chord onto [0,1] against the reference
// distance
func (b *Builder) NormalizedDistance(chord float64) float64 {
	ref := b.params.ReferenceDistance * b.params.Radius
	if ref <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, chord/ref))
}

// BuildLeg builds the curve, altitude profile and speed for a hop between
// two ports.
func (b *Builder) BuildLeg(from, to Port) (*Leg, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build leg: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build leg: %w", err)
	}

	p := b.params
	chord := from.ChordTo(to, p.Radius)
	normalized := b.NormalizedDistance(chord)

	cruise := p.MinAltitude + (p.MaxAltitude-p.MinAltitude)*normalized
	takeoffPhase := 0.25 - 0.05*normalized
	landingPhase := 0.50 - 0.10*normalized
	cruiseStart := takeoffPhase
	cruiseEnd := 1 - landingPhase

	speed := p.ShortLegSpeed
	if chord > p.LongLegThreshold*p.Radius {
		speed = p.LongLegSpeed
	}

	segments := max(1, p.Segments)
	arc := geodesic.ArcPoints(from.Lat, from.Lon, to.Lat, to.Lon, p.Radius, segments, p.Arc, false)
	points := make([]geodesic.Vector3, len(arc))
	for i, a := range arc {
		t := float64(i) / float64(segments)
		alt := altitudeProfile(t, cruise, cruiseStart, cruiseEnd)
		points[i] = a.Normalize().Scale(p.Radius + alt)
	}

	return &Leg{
		From:           from,
		To:             to,
		CurvePoints:    points,
		CruiseAltitude: cruise,
		Speed:          speed,
		CruiseStart:    cruiseStart,
		CruiseEnd:      cruiseEnd,
		Chord:          chord,
		radius:         p.Radius,
		curve:          curve(slices.Clone(points)),
	}, nil
}

// BuildRoute builds one leg per consecutive pair of ports. Fewer than two
// ports is not an error: it returns nil, meaning there is nothing to build.
func (b *Builder) BuildRoute(ports []Port) ([]*Leg, error) {
	if len(ports) < 2 {
		return nil, nil
	}

	legs := make([]*Leg, 0, len(ports)-1)
	for i := 0; i < len(ports)-1; i++ {
		leg, err := b.BuildLeg(ports[i], ports[i+1])
		if err != nil {
			return nil, fmt.Errorf("leg %d (%s -> %s): %w", i+1, ports[i].Name, ports[i+1].Name, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}
