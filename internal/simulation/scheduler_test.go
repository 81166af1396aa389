package simulation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/skylanes/pkg/logger"
)

func TestSchedulerStartStop(t *testing.T) {
	var calls atomic.Int32
	fired := make(chan struct{}, 1)
	sc := NewScheduler(5*time.Millisecond, func() bool {
		calls.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
		return false
	}, logger.NewNop())

	if sc.Running() {
		t.Fatalf("new scheduler is running")
	}
	sc.Start()
	sc.Start()
	if !sc.Running() {
		t.Fatalf("scheduler not running after Start")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("spawn was never called")
	}

	sc.Stop()
	sc.Stop()
	if sc.Running() {
		t.Fatalf("scheduler running after Stop")
	}
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("spawn called after Stop")
	}

	// Restart
	sc.Start()
	defer sc.Stop()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("spawn was never called after restart")
	}
}

func TestSchedulerConcurrentStartStop(t *testing.T) {
	var calls atomic.Int32
	sc := NewScheduler(time.Millisecond, func() bool {
		calls.Add(1)
		return false
	}, logger.NewNop())

	for round := 0; round < 300; round++ {
		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); sc.Start() }()
		go func() { defer wg.Done(); sc.Stop() }()
		go func() { defer wg.Done(); sc.Start() }()
		wg.Wait()
	}

	sc.Stop()
	if sc.Running() {
		t.Fatalf("scheduler running after final Stop")
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("spawn called after final Stop")
	}
}

func TestStopSchedulerKeepsFlightsFlying(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpawnInterval = time.Hour
	h := newHarness(t, cfg)

	h.svc.StartScheduler()
	if !h.svc.SchedulerRunning() {
		t.Fatalf("scheduler not running")
	}
	snap, err := h.svc.CreateSingleLegFlight(fra, syd)
	if err != nil {
		t.Fatal(err)
	}
	h.svc.StopScheduler()

	for i := 0; i < 5; i++ {
		h.svc.Tick()
	}
	got, ok := h.svc.GetFlight(snap.ID)
	if !ok || got.Progress <= 0 {
		t.Fatalf("flight stopped after StopScheduler")
	}
}
