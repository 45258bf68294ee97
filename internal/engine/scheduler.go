package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/common"
)

// Scheduler periodically triggers the classification pass. It is the single
// source of truth for when work runs; the overlap lock inside the engine
// turns a trigger that arrives mid-pass into a no-op.
type Scheduler struct {
	engine   *Engine
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler creates a scheduler firing every interval.
func NewScheduler(engine *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Run triggers a pass immediately and then on every tick until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	report, err := s.engine.RunPendingClassificationPass(ctx)
	switch {
	case errors.Is(err, common.ErrJobOverlap):
		s.logger.Debug("previous pass still running, skipping trigger")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.logger.Error("classification pass failed", "error", err)
	case report.Handled > 0:
		s.logger.Info("scheduled pass complete",
			"run_id", report.RunID,
			"handled", report.Handled,
			"unknown", report.Failed)
	}
}
