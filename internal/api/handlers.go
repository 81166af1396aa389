package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/ports"
	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/storage/sqlite"
	"github.com/yegors/skylanes/internal/websocket"
	"github.com/yegors/skylanes/internal/world"
	"github.com/yegors/skylanes/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// FlightLog is the read side of the completed flight log
type FlightLog interface {
	GetRecent(limit, offset int) ([]*sqlite.FlightRecord, error)
	GetByCallsign(callsign string, limit int) ([]*sqlite.FlightRecord, error)
}

// Handler contains the API handlers
type Handler struct {
	simulationService *simulation.Service
	portProvider      *ports.Provider
	worldState        *world.State
	flightLog         FlightLog
	wsServer          *websocket.Server
	startedAt         time.Time
	logger            *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(simulationService *simulation.Service, portProvider *ports.Provider, worldState *world.State, flightLog FlightLog, wsServer *websocket.Server, log *logger.Logger) *Handler {
	return &Handler{
		simulationService: simulationService,
		portProvider:      portProvider,
		worldState:        worldState,
		flightLog:         flightLog,
		wsServer:          wsServer,
		startedAt:         time.Now(),
		logger:            log.Named("api-handler"),
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
		"flight_count":      h.simulationService.Count(),
		"port_count":        h.portProvider.Count(),
		"scheduler_running": h.simulationService.SchedulerRunning(),
		"world":             h.worldState.Status(),
		"ws_clients":        h.wsServer.ClientCount(),
	})
}

// GetFlights returns all active flights, optionally filtered by phase
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	flights := h.simulationService.Snapshot()

	if phase := strings.ToUpper(r.URL.Query().Get("phase")); phase != "" {
		filtered := make([]flight.Snapshot, 0, len(flights))
		for _, f := range flights {
			if string(f.Phase) == phase {
				filtered = append(filtered, f)
			}
		}
		flights = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"flights": flights,
		"count":   len(flights),
	})
}

// GetFlight returns one active flight
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := h.simulationService.GetFlight(id)
	if !ok {
		http.Error(w, "Flight not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// CreateFlight creates a single-leg flight between two known ports
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" {
		http.Error(w, "Both from and to are required", http.StatusBadRequest)
		return
	}

	stops, ok := h.lookupPorts(w, []string{req.From, req.To})
	if !ok {
		return
	}

	snap, err := h.simulationService.CreateSingleLegFlight(stops[0], stops[1])
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	h.logger.Info("Created flight via API",
		logger.String("id", snap.ID),
		logger.String("callsign", snap.Callsign),
		logger.String("from", req.From),
		logger.String("to", req.To))

	WriteJSON(w, http.StatusCreated, snap)
}

// CreateRouteFlight creates a flight through an ordered list of ports
func (h *Handler) CreateRouteFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ports []string `json:"ports"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	stops, ok := h.lookupPorts(w, req.Ports)
	if !ok {
		return
	}

	snap, err := h.simulationService.CreateMultiLegFlight(stops)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}
	if snap == nil {
		http.Error(w, "A route needs at least two ports", http.StatusBadRequest)
		return
	}

	h.logger.Info("Created multi-leg flight via API",
		logger.String("id", snap.ID),
		logger.String("callsign", snap.Callsign),
		logger.Int("legs", snap.LegCount))

	WriteJSON(w, http.StatusCreated, snap)
}

// lookupPorts resolves idents against the catalogue. It writes a 400 and
// returns false if any ident is unknown.
func (h *Handler) lookupPorts(w http.ResponseWriter, idents []string) ([]route.Port, bool) {
	stops := make([]route.Port, 0, len(idents))
	for _, ident := range idents {
		p, ok := h.portProvider.Lookup(ident)
		if !ok {
			http.Error(w, "Unknown port: "+ident, http.StatusBadRequest)
			return nil, false
		}
		stops = append(stops, p)
	}
	return stops, true
}

// writeCreateError maps flight creation errors to status codes
func (h *Handler) writeCreateError(w http.ResponseWriter, err error) {
	var invalid *route.InvalidPortError
	switch {
	case errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, simulation.ErrPopulationFull):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("Failed to create flight", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// GetPorts returns the current port catalogue
func (h *Handler) GetPorts(w http.ResponseWriter, r *http.Request) {
	list := h.portProvider.Ports()
	WriteJSON(w, http.StatusOK, map[string]any{
		"ports": list,
		"count": len(list),
	})
}

// ReloadPorts re-reads the port catalogue
func (h *Handler) ReloadPorts(w http.ResponseWriter, r *http.Request) {
	if err := h.portProvider.Reload(); err != nil {
		h.logger.Error("Failed to reload ports", logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  h.portProvider.Count(),
	})
}

// GetWorld returns the world flags
func (h *Handler) GetWorld(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.worldState.Status())
}

// PauseWorld freezes the simulation
func (h *Handler) PauseWorld(w http.ResponseWriter, r *http.Request) {
	h.worldState.SetPaused(true)
	broadcastWorldState(h.wsServer, h.worldState)
	h.logger.Info("World paused via API")
	WriteJSON(w, http.StatusOK, h.worldState.Status())
}

// ResumeWorld unfreezes the simulation
func (h *Handler) ResumeWorld(w http.ResponseWriter, r *http.Request) {
	h.worldState.SetPaused(false)
	broadcastWorldState(h.wsServer, h.worldState)
	h.logger.Info("World resumed via API")
	WriteJSON(w, http.StatusOK, h.worldState.Status())
}

// SetVisibility shows or hides the transit layer
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Visible == nil {
		http.Error(w, "Missing visible field", http.StatusBadRequest)
		return
	}

	h.worldState.SetTransitVisible(*req.Visible)
	broadcastWorldState(h.wsServer, h.worldState)
	h.logger.Info("Transit visibility changed via API", logger.Bool("visible", *req.Visible))
	WriteJSON(w, http.StatusOK, h.worldState.Status())
}

// GetScheduler reports whether periodic spawning is active
func (h *Handler) GetScheduler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"running": h.simulationService.SchedulerRunning()})
}

// StartScheduler resumes periodic spawning
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	h.simulationService.StartScheduler()
	WriteJSON(w, http.StatusOK, map[string]any{"running": h.simulationService.SchedulerRunning()})
}

// StopScheduler halts periodic spawning; active flights keep flying
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.simulationService.StopScheduler()
	WriteJSON(w, http.StatusOK, map[string]any{"running": h.simulationService.SchedulerRunning()})
}

// GetHistory returns completed flights, newest first
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.flightLog == nil {
		http.Error(w, "Flight log not configured", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	limit := defaultHistoryLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	offset := 0
	if v := query.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}

	var (
		records []*sqlite.FlightRecord
		err     error
	)
	if callsign := query.Get("callsign"); callsign != "" {
		records, err = h.flightLog.GetByCallsign(strings.ToUpper(callsign), limit)
	} else {
		records, err = h.flightLog.GetRecent(limit, offset)
	}
	if err != nil {
		h.logger.Error("Failed to query flight log", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"flights": records,
		"count":   len(records),
	})
}

// broadcastWorldState pushes the world flags to every websocket client
func broadcastWorldState(server *websocket.Server, state *world.State) {
	status := state.Status()
	server.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeWorldState,
		Data: map[string]any{
			"paused":          status.Paused,
			"transit_visible": status.TransitVisible,
			"sphere_radius":   status.SphereRadius,
		},
	})
}
