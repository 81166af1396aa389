package history

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/storage/sqlite"
	"github.com/yegors/skylanes/pkg/logger"
)

type memoryStore struct {
	mutex   sync.Mutex
	records []*sqlite.FlightRecord
	err     error
}

func (m *memoryStore) Insert(record *sqlite.FlightRecord) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.records = append(m.records, record)
	return int64(len(m.records)), nil
}

func event(typ simulation.EventType, id string, at time.Time) simulation.Event {
	return simulation.Event{
		Type: typ,
		Flight: flight.Snapshot{
			ID:        id,
			Callsign:  "SKY" + id,
			Route:     []string{"Frankfurt", "Dubai"},
			LegCount:  1,
			CreatedAt: at.Add(-time.Minute),
		},
		Time: at,
	}
}

func TestRecorderWritesRemovedFlights(t *testing.T) {
	store := &memoryStore{}
	r := NewRecorder(store, 16, logger.NewNop())

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	r.HandleFlightEvent(event(simulation.EventSpawned, "001", now))
	r.HandleFlightEvent(event(simulation.EventLanded, "001", now))
	r.HandleFlightEvent(event(simulation.EventRemoved, "001", now.Add(time.Second)))
	r.HandleFlightEvent(event(simulation.EventRemoved, "002", now.Add(2*time.Second)))
	r.Close()

	if len(store.records) != 2 {
		t.Fatalf("recorded %d flights, want 2", len(store.records))
	}
	first := store.records[0]
	if first.FlightID != "001" || first.Callsign != "SKY001" || first.Legs != 1 {
		t.Errorf("unexpected record %+v", first)
	}
	if !first.LandedAt.Equal(now) || !first.CompletedAt.Equal(now.Add(time.Second)) {
		t.Errorf("landed %v completed %v", first.LandedAt, first.CompletedAt)
	}
	if !first.DepartedAt.Equal(now.Add(-time.Minute)) {
		t.Errorf("departed %v", first.DepartedAt)
	}
	if !store.records[1].LandedAt.IsZero() {
		t.Errorf("flight without a landing event has landed_at %v", store.records[1].LandedAt)
	}
}

func TestRecorderSurvivesStoreErrorsAndClose(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	r := NewRecorder(store, 4, logger.NewNop())
	r.HandleFlightEvent(event(simulation.EventRemoved, "001", time.Now()))
	r.Close()
	r.Close()

	// Events after Close are ignored
	r.HandleFlightEvent(event(simulation.EventRemoved, "002", time.Now()))
	if len(store.records) != 0 {
		t.Errorf("records written despite store errors")
	}
}
