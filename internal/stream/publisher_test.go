package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/pkg/logger"
)

type fakeWriter struct {
	mutex   sync.Mutex
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.batches = append(w.batches, append([]kafka.Message(nil), msgs...))
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	var all []kafka.Message
	for _, b := range w.batches {
		all = append(all, b...)
	}
	return all
}

func sampleEvent(typ simulation.EventType, id string) simulation.Event {
	return simulation.Event{
		Type: typ,
		Flight: flight.Snapshot{
			ID:       id,
			Callsign: "SKY042",
			Phase:    flight.PhaseCruising,
			Progress: 0.5,
			Route:    []string{"Frankfurt", "Dubai"},
			LegCount: 1,
		},
		Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEncodeDecode(t *testing.T) {
	ev := sampleEvent(simulation.EventLanded, "abc")
	msg, err := Encode(ev)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != "abc" {
		t.Errorf("key %q", msg.Key)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != ContentType || string(msg.Headers[1].Value) != "landed" {
		t.Errorf("headers %+v", msg.Headers)
	}

	got, err := Decode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != ev.Type || got.Flight.Callsign != "SKY042" || got.Flight.Phase != flight.PhaseCruising {
		t.Errorf("decoded %+v", got)
	}
	if !got.Time.Equal(ev.Time) {
		t.Errorf("time %v, want %v", got.Time, ev.Time)
	}
}

func TestPublisherFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(Config{Topic: "flights", BatchSize: 2}, w, logger.NewNop())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		p.HandleFlightEvent(sampleEvent(simulation.EventSpawned, id))
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Errorf("writer not closed")
	}

	msgs := w.messages()
	if len(msgs) != 5 {
		t.Fatalf("published %d messages, want 5", len(msgs))
	}
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if string(msgs[i].Key) != want {
			t.Errorf("message %d key %q, want %q", i, msgs[i].Key, want)
		}
	}
	for _, b := range w.batches {
		if len(b) > 2 {
			t.Errorf("batch of %d exceeds batch size", len(b))
		}
	}

	// Events after Close are dropped
	p.HandleFlightEvent(sampleEvent(simulation.EventRemoved, "z"))
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPublisherKeepsGoingAfterWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewPublisherWithWriter(Config{Topic: "flights"}, w, logger.NewNop())
	p.HandleFlightEvent(sampleEvent(simulation.EventSpawned, "a"))
	p.HandleFlightEvent(sampleEvent(simulation.EventRemoved, "a"))
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if len(w.messages()) != 2 {
		t.Errorf("attempted %d messages, want 2", len(w.messages()))
	}
}
