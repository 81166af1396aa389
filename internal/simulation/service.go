package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/physics"
	"github.com/yegors/skylanes/internal/rng"
	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/pkg/logger"
)

// ErrPopulationFull is returned when creating a flight would exceed the
// active flight cap
var ErrPopulationFull = errors.New("maximum number of active flights reached")

// Config holds the simulation tuning
type Config struct {
	MaxActive           int           // Cap on concurrently active flights
	TickInterval        time.Duration // Frame period of the driver loop
	SpawnInterval       time.Duration // Period of the spawn scheduler
	MultiLegProbability float64       // Chance a spawn builds a multi-leg route
	MinRouteStops       int           // Fewest ports on a spawned multi-leg route
	MaxRouteStops       int           // Most ports on a spawned multi-leg route
	MinLegDistance      float64       // Shortest spawned single leg, in sphere radii
	AutoSpawn           bool          // Start the scheduler with the service
	FeetPerUnit         float64       // Converts world altitude to feet for telemetry
	MagneticHeadings    bool          // Include WMM magnetic heading in snapshots
	Route               route.Params
	Flight              flight.Params
}

// DefaultConfig returns the reference tuning
func DefaultConfig() Config {
	return Config{
		MaxActive:           10,
		TickInterval:        time.Second / 60,
		SpawnInterval:       3 * time.Second,
		MultiLegProbability: 0.4,
		MinRouteStops:       2,
		MaxRouteStops:       4,
		MinLegDistance:      0.4,
		AutoSpawn:           true,
		FeetPerUnit:         500000,
		Route:               route.DefaultParams(),
		Flight:              flight.DefaultParams(),
	}
}

// Deps are the collaborators the service talks to. Ports and World are
// required; the rest may be nil.
type Deps struct {
	Ports   PortProvider
	World   World
	Trails  TrailRenderer
	Visuals VisualProvider
	Sinks   []EventSink
	Rand    rng.Source
}

// active is a flight plus the state of its visual
type active struct {
	flight      *flight.Flight
	handle      AssetHandle
	assetWarned bool
	hidden      bool
}

// Service owns the population of active flights
type Service struct {
	cfg       Config
	ports     PortProvider
	world     World
	trails    TrailRenderer
	visuals   VisualProvider
	sinks     []EventSink
	rng       rng.Source
	flights   []*active
	mutex     sync.Mutex
	scheduler *Scheduler
	logger    *logger.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewService creates a new simulation service
func NewService(cfg Config, deps Deps, log *logger.Logger) *Service {
	source := deps.Rand
	if source == nil {
		source = rng.New(0)
	}
	s := &Service{
		cfg:     cfg,
		ports:   deps.Ports,
		world:   deps.World,
		trails:  deps.Trails,
		visuals: deps.Visuals,
		sinks:   deps.Sinks,
		rng:     source,
		logger:  log.Named("simulation"),
		stopCh:  make(chan struct{}),
	}
	s.scheduler = NewScheduler(cfg.SpawnInterval, s.TrySpawn, s.logger)
	return s
}

// builder returns a route builder for the world's current radius
func (s *Service) builder() *route.Builder {
	params := s.cfg.Route
	if r := s.world.SphereRadius(); r > 0 {
		params.Radius = r
	}
	return route.NewBuilder(params)
}

// CreateSingleLegFlight creates a flight between two ports
func (s *Service) CreateSingleLegFlight(from, to route.Port) (*flight.Snapshot, error) {
	leg, err := s.builder().BuildLeg(from, to)
	if err != nil {
		return nil, err
	}
	return s.addFlight([]*route.Leg{leg})
}

// CreateMultiLegFlight creates a flight visiting the ports in order. Fewer
// than two ports is not an error and returns nil.
func (s *Service) CreateMultiLegFlight(ports []route.Port) (*flight.Snapshot, error) {
	legs, err := s.builder().BuildRoute(ports)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, nil
	}
	return s.addFlight(legs)
}

func (s *Service) addFlight(legs []*route.Leg) (*flight.Snapshot, error) {
	id := uuid.NewString()

	var handle AssetHandle
	if s.visuals != nil {
		handle = s.visuals.Load(id)
	}

	s.mutex.Lock()
	if len(s.flights) >= s.cfg.MaxActive {
		s.mutex.Unlock()
		if s.visuals != nil {
			s.visuals.Release(id)
		}
		return nil, fmt.Errorf("%w (%d)", ErrPopulationFull, s.cfg.MaxActive)
	}

	f := flight.New(id, legs, s.cfg.Flight, s.rng)
	f.Callsign = s.generateCallsign()
	s.flights = append(s.flights, &active{flight: f, handle: handle})
	snap := s.snapshot(f)
	s.mutex.Unlock()

	s.logger.Info("Created flight",
		logger.String("id", id),
		logger.String("callsign", snap.Callsign),
		logger.String("from", snap.From.Name),
		logger.String("to", snap.FinalDestination),
		logger.Int("legs", len(legs)),
	)
	s.dispatch(dispatch{events: []Event{{Type: EventSpawned, Flight: snap, Time: time.Now().UTC()}}})

	return &snap, nil
}

// pose is a visual update collected during a tick
type pose struct {
	id   string
	pose flight.Pose
}

// dispatch is everything a tick needs to tell collaborators, gathered
// under the lock and delivered after it is released
type dispatch struct {
	updates  []pose
	trails   []flight.TrailSegment
	hides    []string
	releases []string
	events   []Event
}

// Tick advances every active flight by one step and removes the ones
// whose landing timer has expired
func (s *Service) Tick() {
	visible := s.world.IsTransitVisible()
	now := time.Now().UTC()

	var out dispatch
	s.mutex.Lock()
	for i := len(s.flights) - 1; i >= 0; i-- {
		a := s.flights[i]
		step := a.flight.Advance()

		if step.LegChanged {
			out.events = append(out.events, Event{Type: EventLegChanged, Flight: s.snapshot(a.flight), Time: now})
		}
		if step.Landed {
			out.events = append(out.events, Event{Type: EventLanded, Flight: s.snapshot(a.flight), Time: now})
		}
		if step.Done {
			out.events = append(out.events, Event{Type: EventRemoved, Flight: s.snapshot(a.flight), Time: now})
			out.releases = append(out.releases, a.flight.ID)
			s.flights = append(s.flights[:i], s.flights[i+1:]...)
			continue
		}

		if !visible {
			if !a.hidden {
				out.hides = append(out.hides, a.flight.ID)
				a.hidden = true
			}
			continue
		}
		a.hidden = false

		if step.Trail != nil {
			out.trails = append(out.trails, *step.Trail)
		}
		if s.assetReady(a) {
			out.updates = append(out.updates, pose{id: a.flight.ID, pose: step.Pose})
		}
	}
	s.mutex.Unlock()

	s.dispatch(out)
}

// assetReady reports whether a flight's visual can be drawn. A failed load
// is logged once and the flight keeps flying unrendered.
func (s *Service) assetReady(a *active) bool {
	if a.handle == nil || !a.handle.Ready() {
		return false
	}
	if err := a.handle.Err(); err != nil {
		if !a.assetWarned {
			s.logger.Warn("Visual asset unavailable, flight will not be rendered",
				logger.String("id", a.flight.ID),
				logger.String("callsign", a.flight.Callsign),
				logger.Error(err),
			)
			a.assetWarned = true
		}
		return false
	}
	return true
}

func (s *Service) dispatch(out dispatch) {
	if s.visuals != nil {
		for _, id := range out.hides {
			s.visuals.Hide(id)
		}
		for _, u := range out.updates {
			s.visuals.Update(u.id, u.pose)
		}
		for _, id := range out.releases {
			s.visuals.Release(id)
		}
	}
	if s.trails != nil {
		for _, t := range out.trails {
			s.trails.EmitTrailSegment(t.Position, t.Direction)
		}
	}
	for _, ev := range out.events {
		if ev.Type == EventRemoved {
			s.logger.Info("Removed flight",
				logger.String("id", ev.Flight.ID),
				logger.String("callsign", ev.Flight.Callsign),
			)
		}
		for _, sink := range s.sinks {
			sink.HandleFlightEvent(ev)
		}
	}
}

// TrySpawn makes one spawn attempt. It returns false without logging when
// the world is paused or hidden, the population is full, there are not
// enough ports, or the chosen hop is too short.
func (s *Service) TrySpawn() bool {
	if s.world.IsPaused() || !s.world.IsTransitVisible() {
		return false
	}
	ports := s.ports.Ports()
	if len(ports) < 2 {
		return false
	}

	s.mutex.Lock()
	if len(s.flights) >= s.cfg.MaxActive {
		s.mutex.Unlock()
		return false
	}
	multi := len(ports) >= 3 && rng.Chance(s.rng, s.cfg.MultiLegProbability)
	n := 2
	if multi {
		n = s.cfg.MinRouteStops + s.rng.Intn(max(0, s.cfg.MaxRouteStops-s.cfg.MinRouteStops)+1)
	}
	picked := rng.Pick(s.rng, len(ports), n)
	s.mutex.Unlock()

	stops := make([]route.Port, len(picked))
	for i, idx := range picked {
		stops[i] = ports[idx]
	}

	// A two-stop route is a single leg whichever branch drew it
	if len(stops) == 2 {
		r := s.builder().Params().Radius
		if stops[0].ChordTo(stops[1], r) < s.cfg.MinLegDistance*r {
			s.logger.Debug("Skipped spawn, ports too close",
				logger.String("from", stops[0].Name),
				logger.String("to", stops[1].Name),
			)
			return false
		}
	}

	var err error
	if multi {
		_, err = s.CreateMultiLegFlight(stops)
	} else {
		_, err = s.CreateSingleLegFlight(stops[0], stops[1])
	}
	if err != nil {
		if !errors.Is(err, ErrPopulationFull) {
			s.logger.Error("Failed to spawn flight", logger.Error(err))
		}
		return false
	}
	return true
}

// Snapshot returns a copy of every active flight
func (s *Service) Snapshot() []flight.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make([]flight.Snapshot, 0, len(s.flights))
	for _, a := range s.flights {
		result = append(result, s.snapshot(a.flight))
	}
	return result
}

// GetFlight returns a copy of one active flight
func (s *Service) GetFlight(id string) (*flight.Snapshot, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, a := range s.flights {
		if a.flight.ID == id {
			snap := s.snapshot(a.flight)
			return &snap, true
		}
	}
	return nil, false
}

// Count returns the number of active flights
func (s *Service) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.flights)
}

// snapshot must be called with the mutex held
func (s *Service) snapshot(f *flight.Flight) flight.Snapshot {
	snap := f.Snapshot(s.cfg.FeetPerUnit)
	if s.cfg.MagneticHeadings {
		decl := physics.CalculateMagneticVariation(snap.Lat, snap.Lon, snap.AltitudeFt, time.Now().UTC())
		mag := physics.MagneticHeading(snap.TrueHeading, decl)
		snap.MagneticHeading = &mag
	}
	return snap
}

// callsignAttempts bounds the random draws before generateCallsign scans
const callsignAttempts = 32

// generateCallsign generates a callsign in format SKY001-SKY999 that no
// active flight is using. Must be called with the mutex held.
func (s *Service) generateCallsign() string {
	used := make(map[string]bool, len(s.flights))
	for _, a := range s.flights {
		used[a.flight.Callsign] = true
	}
	for attempt := 0; attempt < callsignAttempts; attempt++ {
		callsign := fmt.Sprintf("SKY%03d", s.rng.Intn(999)+1)
		if !used[callsign] {
			return callsign
		}
	}
	// Crowded: take the lowest free number, past SKY999 if need be
	for n := 1; ; n++ {
		callsign := fmt.Sprintf("SKY%03d", n)
		if !used[callsign] {
			return callsign
		}
	}
}

// StartScheduler begins periodic spawning
func (s *Service) StartScheduler() {
	s.scheduler.Start()
}

// StopScheduler halts future spawns. Active flights keep flying.
func (s *Service) StopScheduler() {
	s.scheduler.Stop()
}

// SchedulerRunning reports whether periodic spawning is active
func (s *Service) SchedulerRunning() bool {
	return s.scheduler.Running()
}

// Start runs the frame loop in the background and, if configured, the
// spawn scheduler
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval %v", s.cfg.TickInterval)
	}

	s.logger.Info("Starting simulation",
		logger.Duration("tick_interval", s.cfg.TickInterval),
		logger.Duration("spawn_interval", s.cfg.SpawnInterval),
		logger.Int("max_active", s.cfg.MaxActive),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()

	if s.cfg.AutoSpawn {
		s.StartScheduler()
	}
	return nil
}

// Stop halts the scheduler and the frame loop
func (s *Service) Stop() {
	s.logger.Info("Stopping simulation")
	s.StopScheduler()
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Simulation stopped")
}

// Run drives Tick from a frame ticker until ctx is cancelled or Stop is
// called. Ticks are skipped while the world is paused.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.world.IsPaused() {
				s.Tick()
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
