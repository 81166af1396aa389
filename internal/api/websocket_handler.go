package api

import (
	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/websocket"
	"github.com/yegors/skylanes/internal/world"
	"github.com/yegors/skylanes/pkg/logger"
)

// WebSocketHandler handles incoming WebSocket messages for the simulation
type WebSocketHandler struct {
	service    *simulation.Service
	worldState *world.State
	server     *websocket.Server
	logger     *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(service *simulation.Service, worldState *world.State, server *websocket.Server, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service:    service,
		worldState: worldState,
		server:     server,
		logger:     log.Named("sim-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeWorldPause:
		paused, ok := data["paused"].(bool)
		if !ok {
			h.logger.Debug("world_pause without paused flag")
			return nil
		}
		h.worldState.SetPaused(paused)
		broadcastWorldState(h.server, h.worldState)
		return nil
	case websocket.MessageTypeTransitVisibility:
		visible, ok := data["visible"].(bool)
		if !ok {
			h.logger.Debug("transit_visibility without visible flag")
			return nil
		}
		h.worldState.SetTransitVisible(visible)
		broadcastWorldState(h.server, h.worldState)
		return nil
	case websocket.MessageTypeFilterUpdate:
		return h.handleFilterUpdate(client, data)
	case websocket.MessageTypeSnapshotRequest:
		return h.handleSnapshotRequest(client)
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// handleFilterUpdate stores the client's filters and replies with a
// snapshot that honours them
func (h *WebSocketHandler) handleFilterUpdate(client *websocket.Client, data map[string]any) error {
	var filters websocket.ClientFilters

	if phases, ok := data["phases"].(map[string]any); ok {
		filters.Phases = make(map[string]bool)
		for phase, enabled := range phases {
			if enabledBool, ok := enabled.(bool); ok {
				filters.Phases[phase] = enabledBool
			}
		}
	}
	if selected, ok := data["selected_flight_id"].(string); ok {
		filters.SelectedFlightID = selected
	}

	client.UpdateFilters(&filters)
	h.logger.Debug("Updated client filters", logger.Int("phase_count", len(filters.Phases)))

	return h.handleSnapshotRequest(client)
}

// handleSnapshotRequest sends the client every active flight that passes
// its filters, plus the world flags
func (h *WebSocketHandler) handleSnapshotRequest(client *websocket.Client) error {
	all := h.service.Snapshot()
	flights := make([]flight.Snapshot, 0, len(all))
	for _, f := range all {
		if client.MatchesFilters(f.ID, string(f.Phase)) {
			flights = append(flights, f)
		}
	}

	status := h.worldState.Status()
	message := &websocket.Message{
		Type: websocket.MessageTypeSnapshotResponse,
		Data: map[string]any{
			"flights":         flights,
			"count":           len(flights),
			"paused":          status.Paused,
			"transit_visible": status.TransitVisible,
		},
	}
	if !client.SendMessage(message) {
		h.logger.Warn("Client send channel full, dropping snapshot")
	}
	return nil
}
