package world

import (
	"math"
	"sync/atomic"
)

// State holds the global flags the simulation reads every frame. It is safe
// for concurrent use.
type State struct {
	paused  atomic.Bool
	visible atomic.Bool
	radius  atomic.Uint64
}

// NewState creates a running, visible world of the given sphere radius
func NewState(radius float64) *State {
	s := &State{}
	s.visible.Store(true)
	s.SetSphereRadius(radius)
	return s
}

func (s *State) IsPaused() bool {
	return s.paused.Load()
}

func (s *State) SetPaused(paused bool) {
	s.paused.Store(paused)
}

func (s *State) IsTransitVisible() bool {
	return s.visible.Load()
}

func (s *State) SetTransitVisible(visible bool) {
	s.visible.Store(visible)
}

func (s *State) SphereRadius() float64 {
	return math.Float64frombits(s.radius.Load())
}

// SetSphereRadius changes the radius used for flights created from now on.
// Non-positive values are ignored.
func (s *State) SetSphereRadius(radius float64) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return
	}
	s.radius.Store(math.Float64bits(radius))
}

// Status is a point-in-time copy of the flags
type Status struct {
	Paused         bool    `json:"paused"`
	TransitVisible bool    `json:"transit_visible"`
	SphereRadius   float64 `json:"sphere_radius"`
}

func (s *State) Status() Status {
	return Status{
		Paused:         s.IsPaused(),
		TransitVisible: s.IsTransitVisible(),
		SphereRadius:   s.SphereRadius(),
	}
}
