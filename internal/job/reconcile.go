// Package job schedules background maintenance.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/service"

	"github.com/robfig/cron/v3"
)

// CounterReconciler repairs denormalized counters.
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (*service.ReconcileReport, error)
}

// ReconcileJob runs one reconciliation per tick. Overlapping ticks are skipped.
type ReconcileJob struct {
	reconciler CounterReconciler
	timeout    time.Duration
	running    atomic.Bool
}

func NewReconcileJob(r CounterReconciler, timeout time.Duration) *ReconcileJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ReconcileJob{reconciler: r, timeout: timeout}
}

// Run implements cron.Job.
func (j *ReconcileJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		middleware.Logger.Warn("counter reconciliation still running, skipping tick")
		return
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.reconciler.ReconcileCounters(ctx)
	if err != nil {
		middleware.Logger.Error("counter reconciliation failed", slog.String("error", err.Error()))
		return
	}
	middleware.Logger.Info("counter reconciliation finished",
		slog.Int64("fixed", report.Total),
		slog.Duration("duration", report.Duration),
	)
}

// Scheduler owns the cron engine.
type Scheduler struct {
	engine *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{engine: cron.New()}
}

// Register adds j under a standard five-field spec or a descriptor such as
// "@hourly".
func (s *Scheduler) Register(spec string, j cron.Job) error {
	if _, err := s.engine.AddJob(spec, j); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	middleware.Logger.Info("cron scheduler started", slog.Int("jobs", len(s.engine.Entries())))
	s.engine.Start()
}

// Stop halts scheduling and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	middleware.Logger.Info("cron scheduler stopped")
}
