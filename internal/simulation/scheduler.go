package simulation

import (
	"sync"
	"time"

	"github.com/yegors/skylanes/pkg/logger"
)

// Scheduler calls a spawn function on a fixed wall-clock interval. It can
// be stopped and started again.
type Scheduler struct {
	interval time.Duration
	spawn    func() bool
	logger   *logger.Logger

	mutex   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a stopped scheduler
func NewScheduler(interval time.Duration, spawn func() bool, log *logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		spawn:    spawn,
		logger:   log.Named("scheduler"),
	}
}

// Start begins calling spawn every interval. Starting a running scheduler
// does nothing.
func (sc *Scheduler) Start() {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.running || sc.interval <= 0 {
		return
	}
	sc.running = true
	sc.stopCh = make(chan struct{})
	sc.doneCh = make(chan struct{})

	go sc.loop(sc.stopCh, sc.doneCh)

	sc.logger.Info("Spawn scheduler started", logger.Duration("interval", sc.interval))
}

// Stop halts the scheduler and waits for an in-flight spawn to finish
func (sc *Scheduler) Stop() {
	sc.mutex.Lock()
	if !sc.running {
		sc.mutex.Unlock()
		return
	}
	sc.running = false
	close(sc.stopCh)
	done := sc.doneCh
	sc.mutex.Unlock()

	// Wait for this run's loop only; a concurrent Start gets new channels.
	<-done
	sc.logger.Info("Spawn scheduler stopped")
}

// Running reports whether the scheduler is active
func (sc *Scheduler) Running() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.running
}

func (sc *Scheduler) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if sc.spawn() {
				sc.logger.Debug("Spawned flight")
			}
		case <-stopCh:
			return
		}
	}
}
