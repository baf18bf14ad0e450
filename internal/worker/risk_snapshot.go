// Package worker runs background jobs alongside the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
	"github.com/robfig/cron/v3"
)

// RiskStore defines the store operations needed by the risk snapshot worker.
type RiskStore interface {
	LoadSnapshot(ctx context.Context) (*types.Snapshot, error)
	SaveRiskStatuses(ctx context.Context, updates []types.RiskStatusUpdate) (int, error)
}

// RiskSnapshotWorker classifies every POC on a cron schedule and persists
// the derived risk_status and completion_date_auto columns.
type RiskSnapshotWorker struct {
	store      RiskStore
	classifier *lifecycle.Classifier
	schedule   cron.Schedule
	loc        *time.Location
	now        func() time.Time
}

// NewRiskSnapshotWorker creates a worker firing on schedule, evaluated in loc.
func NewRiskSnapshotWorker(store RiskStore, c *lifecycle.Classifier, schedule cron.Schedule, loc *time.Location) *RiskSnapshotWorker {
	if loc == nil {
		loc = time.Local
	}
	return &RiskSnapshotWorker{
		store:      store,
		classifier: c,
		schedule:   schedule,
		loc:        loc,
		now:        time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start; the first cycle is the next scheduled time.
func (w *RiskSnapshotWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "risk-snapshot",
		"timezone", w.loc.String(),
	)

	for {
		now := w.now().In(w.loc)
		next := w.schedule.Next(now)
		if next.IsZero() {
			slog.Warn("worker stopped",
				"component", "worker",
				"worker", "risk-snapshot",
				"reason", "schedule_exhausted",
			)
			return
		}

		slog.Debug("next risk snapshot scheduled",
			"component", "worker",
			"next_run", next.Format(time.RFC3339),
		)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "risk-snapshot",
				"reason", "context_cancelled",
			)
			return
		case <-timer.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle executes RunOnce and logs the outcome. Failures are never fatal.
func (w *RiskSnapshotWorker) runCycle(ctx context.Context) {
	start := time.Now()

	slog.Debug("risk snapshot cycle started",
		"component", "worker",
		"action", "risk_snapshot_start",
	)

	evaluated, changed, err := w.RunOnce(ctx)
	if err != nil {
		// Check for graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Error("risk snapshot failed",
			"component", "worker",
			"action", "risk_snapshot_failed",
			"error", err,
		)
		return
	}

	slog.Info("risk snapshot cycle completed",
		"component", "worker",
		"action", "risk_snapshot_complete",
		"evaluated", evaluated,
		"changed", changed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// RunOnce classifies every registered POC as of now and saves the results.
// Deregistered POCs keep whatever status they last had. It returns the
// number of POCs evaluated and the number of rows that changed.
func (w *RiskSnapshotWorker) RunOnce(ctx context.Context) (evaluated, changed int, err error) {
	snap, err := w.store.LoadSnapshot(ctx)
	if err != nil {
		return 0, 0, err
	}

	updates := BuildRiskUpdates(w.classifier, *snap, w.now().In(w.loc))
	if len(updates) == 0 {
		return 0, 0, nil
	}

	changed, err = w.store.SaveRiskStatuses(ctx, updates)
	if err != nil {
		return len(updates), 0, err
	}
	return len(updates), changed, nil
}

// BuildRiskUpdates derives the persisted columns for every registered POC.
// completion_date_auto is the latest completion instant once every in-scope
// use case is done, and is cleared otherwise.
func BuildRiskUpdates(c *lifecycle.Classifier, snap types.Snapshot, asOf time.Time) []types.RiskStatusUpdate {
	results := c.ClassifyAll(snap, asOf)
	updates := make([]types.RiskStatusUpdate, 0, len(snap.POCs))
	for _, p := range snap.POCs {
		if p.IsDeregistered() {
			continue
		}
		r := results[p.ID]

		u := types.RiskStatusUpdate{POCID: p.ID, RiskStatus: r.StatusLabel()}
		if r.Progress.AllCompleted && r.Progress.LatestCompletion != nil {
			at := *r.Progress.LatestCompletion
			u.CompletionDateAuto = &at
		}
		updates = append(updates, u)
	}
	return updates
}
