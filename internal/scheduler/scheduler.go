package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

type Scheduler struct {
	maintenance service.MaintenanceService
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc // cancels the current run
	mu          sync.Mutex         // protects cancelFunc
}

func New(maintenance service.MaintenanceService, interval time.Duration) *Scheduler {
	return &Scheduler{
		maintenance: maintenance,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start runs maintenance now and then every interval. A zero interval
// disables the scheduler.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		logger.Info("scheduler disabled", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "skipped")
		return
	}
	s.wg.Add(1)
	go s.run()
	logger.Info("scheduler started", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "ok", "interval_ms", s.interval.Milliseconds())
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		// cancel the run in progress first
		s.mu.Lock()
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		s.mu.Unlock()

		close(s.stopCh)
		s.wg.Wait()
		logger.Info("scheduler stopped", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "ok")
	})
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.maintain()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maintain()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) maintain() {
	// a run never outlives the interval
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)

	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	select {
	case <-s.stopCh:
		return
	default:
	}

	logger.Debug("maintenance started", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "ok")
	if err := s.maintenance.RunAll(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("maintenance cancelled", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "cancelled")
			return
		}
		logger.Error("maintenance failed", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "failed", "error", err)
		return
	}
	logger.Debug("maintenance completed", "module", "scheduler", "action", "maintain", "resource", "scheduler", "result", "ok")
}
