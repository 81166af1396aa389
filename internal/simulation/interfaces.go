package simulation

import (
	"time"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/route"
)

// PortProvider supplies the ports flights may be spawned between. The set
// may change between calls.
type PortProvider interface {
	Ports() []route.Port
}

// World exposes the global flags the simulation is gated on
type World interface {
	IsPaused() bool
	IsTransitVisible() bool
	SphereRadius() float64
}

// TrailRenderer draws trail segments behind moving flights
type TrailRenderer interface {
	EmitTrailSegment(position, direction geodesic.Vector3)
}

// AssetHandle is a visual asset that may still be loading
type AssetHandle interface {
	// Ready reports whether loading has finished, successfully or not. It
	// must not block.
	Ready() bool
	// Err returns the load error once Ready is true
	Err() error
}

// VisualProvider owns the on-screen representation of each flight. Load
// must return immediately; the asset is resolved in the background.
type VisualProvider interface {
	Load(id string) AssetHandle
	Update(id string, pose flight.Pose)
	Hide(id string)
	Release(id string)
}

// EventType names a flight lifecycle event
type EventType string

const (
	EventSpawned    EventType = "spawned"
	EventLegChanged EventType = "leg_changed"
	EventLanded     EventType = "landed"
	EventRemoved    EventType = "removed"
)

// Event is a flight lifecycle notification. Flight is a copy taken when
// the event happened.
type Event struct {
	Type   EventType       `json:"type" msgpack:"type"`
	Flight flight.Snapshot `json:"flight" msgpack:"flight"`
	Time   time.Time       `json:"time" msgpack:"time"`
}

// EventSink receives lifecycle events. It is called from the tick
// goroutine and should hand slow work off elsewhere.
type EventSink interface {
	HandleFlightEvent(event Event)
}
