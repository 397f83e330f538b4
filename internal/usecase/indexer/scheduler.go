package indexer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultInterval applies when a source does not configure one.
const defaultInterval = time.Hour

// Scheduler runs every handler on its own refresh cycle.
type Scheduler struct {
	handlers []Handler
	logger   *zap.Logger
}

// NewScheduler creates a scheduler for the given handlers.
func NewScheduler(handlers []Handler, logger *zap.Logger) *Scheduler {
	return &Scheduler{handlers: handlers, logger: logger}
}

// Run starts one refresh loop per handler and blocks until ctx is
// cancelled and all loops have stopped. Every handler runs once
// immediately, then on its interval.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.handlers) == 0 {
		s.logger.Warn("no sources configured, nothing to schedule")
		return
	}

	s.logger.Info("scheduler started", zap.Int("sources", len(s.handlers)))

	var wg sync.WaitGroup
	for _, handler := range s.handlers {
		handler := handler
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, handler)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, h Handler) {
	interval := h.Interval()
	if interval <= 0 {
		interval = defaultInterval
	}

	s.runOnce(ctx, h)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, h)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, h Handler) {
	start := time.Now()
	if err := h.Run(ctx); err != nil {
		// Cancellation during shutdown is not a refresh failure.
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("source refresh failed",
			zap.String("source", h.ID()),
			zap.Error(err))
		return
	}
	s.logger.Info("source refresh succeeded",
		zap.String("source", h.ID()),
		zap.Duration("duration", time.Since(start)))
}
