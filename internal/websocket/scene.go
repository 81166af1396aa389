package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yegors/skylanes/internal/assets"
	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/pkg/logger"
)

// maxPendingTrails bounds trail segments buffered between frames
const maxPendingTrails = 2048

// FramePose is one flight's pose in a frame message
type FramePose struct {
	ID       string           `json:"id"`
	Model    string           `json:"model,omitempty"`
	Position geodesic.Vector3 `json:"position"`
	Forward  geodesic.Vector3 `json:"forward"`
	Up       geodesic.Vector3 `json:"up"`
	Bank     float64          `json:"bank"`
	Altitude float64          `json:"altitude"`
}

// SceneRenderer streams the simulation to browser clients. It collects
// poses and trail segments from the simulation and pushes them as one
// frame message per interval; lifecycle events are pushed immediately.
type SceneRenderer struct {
	server   *Server
	loader   *assets.Loader
	interval time.Duration
	logger   *logger.Logger

	mutex  sync.Mutex
	poses  map[string]flight.Pose
	models map[string]string
	trails []flight.TrailSegment
}

// NewSceneRenderer creates a renderer. loader may be nil, in which case
// flights are drawn with the client's default model.
func NewSceneRenderer(server *Server, loader *assets.Loader, interval time.Duration, log *logger.Logger) *SceneRenderer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SceneRenderer{
		server:   server,
		loader:   loader,
		interval: interval,
		logger:   log.Named("scene"),
		poses:    make(map[string]flight.Pose),
		models:   make(map[string]string),
	}
}

// readyHandle is used when no model files are configured
type readyHandle struct{}

func (readyHandle) Ready() bool { return true }
func (readyHandle) Err() error  { return nil }

// Load starts resolving the model for a flight
func (r *SceneRenderer) Load(id string) simulation.AssetHandle {
	if r.loader == nil {
		return readyHandle{}
	}
	h := r.loader.Load(id)

	r.mutex.Lock()
	r.models[id] = h.Name()
	r.mutex.Unlock()
	return h
}

// Update records the latest pose of a flight
func (r *SceneRenderer) Update(id string, pose flight.Pose) {
	r.mutex.Lock()
	r.poses[id] = pose
	r.mutex.Unlock()
}

// Hide stops drawing a flight without forgetting it
func (r *SceneRenderer) Hide(id string) {
	r.mutex.Lock()
	delete(r.poses, id)
	r.mutex.Unlock()

	r.server.Broadcast(&Message{
		Type: MessageTypeFlightHidden,
		Data: map[string]any{"id": id},
	})
}

// Release forgets a flight
func (r *SceneRenderer) Release(id string) {
	r.mutex.Lock()
	delete(r.poses, id)
	delete(r.models, id)
	r.mutex.Unlock()
}

// EmitTrailSegment queues a trail segment for the next frame
func (r *SceneRenderer) EmitTrailSegment(position, direction geodesic.Vector3) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.trails) >= maxPendingTrails {
		r.trails = r.trails[1:]
	}
	r.trails = append(r.trails, flight.TrailSegment{Position: position, Direction: direction})
}

// HandleFlightEvent pushes a lifecycle event to clients
func (r *SceneRenderer) HandleFlightEvent(ev simulation.Event) {
	var messageType string
	switch ev.Type {
	case simulation.EventSpawned:
		messageType = MessageTypeFlightSpawned
	case simulation.EventLegChanged:
		messageType = MessageTypeFlightLegChanged
	case simulation.EventLanded:
		messageType = MessageTypeFlightLanded
	case simulation.EventRemoved:
		messageType = MessageTypeFlightRemoved
	default:
		return
	}

	r.server.Broadcast(&Message{
		Type: messageType,
		Data: map[string]any{
			"id":     ev.Flight.ID,
			"phase":  string(ev.Flight.Phase),
			"flight": ev.Flight,
			"time":   ev.Time,
		},
	})
}

// Run pushes a frame every interval until ctx is cancelled
func (r *SceneRenderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if msg := r.frame(); msg != nil {
				r.server.Broadcast(msg)
			}
		case <-ctx.Done():
			return
		}
	}
}

// frame builds the next frame message and clears pending trails. It
// returns nil when there is nothing to draw.
func (r *SceneRenderer) frame() *Message {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.poses) == 0 && len(r.trails) == 0 {
		return nil
	}

	flights := make([]FramePose, 0, len(r.poses))
	for id, p := range r.poses {
		flights = append(flights, FramePose{
			ID:       id,
			Model:    r.models[id],
			Position: p.Position,
			Forward:  p.Forward,
			Up:       p.Up,
			Bank:     p.Bank,
			Altitude: p.Altitude,
		})
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })

	trails := r.trails
	r.trails = nil

	return &Message{
		Type: MessageTypeFrame,
		Data: map[string]any{
			"flights": flights,
			"trails":  trails,
		},
	}
}
