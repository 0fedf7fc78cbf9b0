package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Scheduler triggers a sync pass on a fixed interval until the context is
// cancelled. Pass errors are logged, never fatal; the next tick tries again.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{engine: engine, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. The first pass fires after one full
// interval, not at startup, so the service finishes wiring before it talks
// to the provider.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs a single pass. A panic inside the pass must not take the
// scheduler loop down, so it is recovered and logged here.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync pass panicked", zap.Any("panic", r))
		}
	}()

	if _, err := s.engine.RunPass(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			s.logger.Info("sync pass skipped, previous pass still running")
			return
		}
		s.logger.Error("scheduled sync pass failed", zap.Error(err))
	}
}
