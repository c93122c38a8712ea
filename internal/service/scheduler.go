package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Processor is the unit of work the scheduler drives.
type Processor interface {
	ProcessAll(ctx context.Context)
}

// Scheduler fires the segmentation engine on a fixed interval and on demand.
// It owns its lifecycle: Start on service boot, Stop on shutdown.
type Scheduler struct {
	logger   *zap.Logger
	engine   Processor
	interval time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	triggerCh chan struct{}
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *zap.Logger, engine Processor, interval time.Duration) *Scheduler {
	return &Scheduler{
		logger:   logger,
		engine:   engine,
		interval: interval,
	}
}

// Start launches the run loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Scheduler already running, skipping start")
		return
	}
	s.stopCh = make(chan struct{})
	// Buffer of one: triggers arriving while a run is queued coalesce.
	s.triggerCh = make(chan struct{}, 1)
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the run loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// TriggerNow requests an immediate run without waiting for the timer. It
// never blocks; if a run is already queued the trigger coalesces into it.
func (s *Scheduler) TriggerNow() {
	s.mu.Lock()
	ch := s.triggerCh
	s.mu.Unlock()

	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Catch up on any backlog accumulated while the service was down.
	s.engine.ProcessAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.ProcessAll(ctx)
		case <-s.triggerCh:
			s.engine.ProcessAll(ctx)
		}
	}
}
