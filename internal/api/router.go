package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/skylanes/internal/assets"
	"github.com/yegors/skylanes/internal/ports"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/websocket"
	"github.com/yegors/skylanes/internal/world"
	"github.com/yegors/skylanes/pkg/logger"
)

// Router wires the HTTP API and the websocket endpoint
type Router struct {
	handler   *Handler
	wsServer  *websocket.Server
	wsHandler *WebSocketHandler
	models    *ModelFileHandler
	logger    *logger.Logger
}

// NewRouter creates the router and registers the websocket message handler
// with wsServer. flightLog and loader may be nil.
func NewRouter(simulationService *simulation.Service, portProvider *ports.Provider, worldState *world.State, flightLog FlightLog, loader *assets.Loader, wsServer *websocket.Server, log *logger.Logger) *Router {
	handler := NewHandler(simulationService, portProvider, worldState, flightLog, wsServer, log)
	wsHandler := NewWebSocketHandler(simulationService, worldState, wsServer, log)
	wsServer.SetMessageHandler(wsHandler)

	rt := &Router{
		handler:   handler,
		wsServer:  wsServer,
		wsHandler: wsHandler,
		logger:    log.Named("router"),
	}
	if loader != nil {
		rt.models = NewModelFileHandler(loader, log)
	}
	return rt
}

// Routes returns the HTTP handler for every endpoint
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)

		r.Route("/flights", func(r chi.Router) {
			r.Get("/", rt.handler.GetFlights)
			r.Post("/", rt.handler.CreateFlight)
			r.Post("/route", rt.handler.CreateRouteFlight)
			r.Get("/{id}", rt.handler.GetFlight)
		})

		r.Get("/ports", rt.handler.GetPorts)
		r.Post("/ports/reload", rt.handler.ReloadPorts)

		r.Get("/world", rt.handler.GetWorld)
		r.Post("/world/pause", rt.handler.PauseWorld)
		r.Post("/world/resume", rt.handler.ResumeWorld)
		r.Put("/world/visibility", rt.handler.SetVisibility)

		r.Get("/scheduler", rt.handler.GetScheduler)
		r.Post("/scheduler/start", rt.handler.StartScheduler)
		r.Post("/scheduler/stop", rt.handler.StopScheduler)

		r.Get("/history", rt.handler.GetHistory)
	})

	r.Get("/ws", rt.wsServer.HandleConnection)
	if rt.models != nil {
		r.Get("/models/{name}", rt.models.ServeHTTP)
	}

	return r
}

// requestLogger logs each request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
