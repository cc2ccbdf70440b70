package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/config"
)

// Monitor runs the periodic automation: a poll sweep on one interval and a
// reconciliation pass on another. Cancellation is honored only between
// cycles, so a ledger write in flight always finishes.
type Monitor struct {
	engine     *Engine
	reconciler *Reconciler
	behavior   config.BehaviorConfig
	logger     *slog.Logger
}

// NewMonitor creates the periodic monitor.
func NewMonitor(engine *Engine, reconciler *Reconciler, behavior config.BehaviorConfig, logger *slog.Logger) (*Monitor, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler cannot be nil")
	}
	if behavior.PollInterval <= 0 || behavior.ReconcileInterval <= 0 {
		return nil, errors.New("monitor intervals must be positive")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Monitor{
		engine:     engine,
		reconciler: reconciler,
		behavior:   behavior,
		logger:     logger.With("component", "monitor"),
	}, nil
}

// Run blocks until the context is cancelled, triggering poll sweeps and
// reconciliation passes on their configured intervals. Each cycle runs to
// completion: errors are logged and the loop continues.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"poll_interval", m.behavior.PollInterval,
		"reconcile_interval", m.behavior.ReconcileInterval)

	pollTicker := time.NewTicker(m.behavior.PollInterval)
	defer pollTicker.Stop()
	reconcileTicker := time.NewTicker(m.behavior.ReconcileInterval)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return ctx.Err()

		case <-pollTicker.C:
			if report, err := m.engine.PollAll(ctx); err != nil {
				m.logger.Error("poll sweep failed", "error", err)
			} else if report.CompletedNow > 0 {
				m.logger.Info("tasks completed since last sweep", "count", report.CompletedNow)
			}

		case <-reconcileTicker.C:
			if report, err := m.reconciler.ReconcilePass(ctx); err != nil {
				m.logger.Error("reconcile pass failed", "error", err)
			} else if report.Downloads.Downloaded > 0 {
				m.logger.Info("artifacts downloaded", "count", report.Downloads.Downloaded)
			}
		}
	}
}
