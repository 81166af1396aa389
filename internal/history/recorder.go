package history

import (
	"sync"
	"time"

	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/storage/sqlite"
	"github.com/yegors/skylanes/pkg/logger"
)

// Store is where completed flights are written
type Store interface {
	Insert(record *sqlite.FlightRecord) (int64, error)
}

// Recorder writes a flight log entry for every flight that is removed
// after landing. Events are queued and written by a background worker so
// the simulation never waits on the database.
type Recorder struct {
	store  Store
	events chan simulation.Event
	landed map[string]time.Time
	logger *logger.Logger

	mutex  sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder creates a recorder and starts its worker
func NewRecorder(store Store, queueSize int, log *logger.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		store:  store,
		events: make(chan simulation.Event, queueSize),
		landed: make(map[string]time.Time),
		logger: log.Named("history"),
		done:   make(chan struct{}),
	}
	go r.worker()
	return r
}

// HandleFlightEvent queues an event. It never blocks; when the queue is
// full the event is dropped.
func (r *Recorder) HandleFlightEvent(ev simulation.Event) {
	if ev.Type != simulation.EventLanded && ev.Type != simulation.EventRemoved {
		return
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.events <- ev:
	default:
		r.logger.Warn("Flight log queue full, dropping event",
			logger.String("type", string(ev.Type)),
			logger.String("callsign", ev.Flight.Callsign))
	}
}

// Close flushes queued events and stops the worker
func (r *Recorder) Close() {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mutex.Unlock()

	<-r.done
}

func (r *Recorder) worker() {
	defer close(r.done)

	for ev := range r.events {
		switch ev.Type {
		case simulation.EventLanded:
			r.landed[ev.Flight.ID] = ev.Time
		case simulation.EventRemoved:
			record := &sqlite.FlightRecord{
				FlightID:    ev.Flight.ID,
				Callsign:    ev.Flight.Callsign,
				Route:       ev.Flight.Route,
				Legs:        ev.Flight.LegCount,
				DepartedAt:  ev.Flight.CreatedAt,
				LandedAt:    r.landed[ev.Flight.ID],
				CompletedAt: ev.Time,
			}
			delete(r.landed, ev.Flight.ID)

			if _, err := r.store.Insert(record); err != nil {
				r.logger.Error("Failed to record flight",
					logger.String("callsign", record.Callsign),
					logger.Error(err))
			}
		}
	}
}
