package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/repo"
)

// Checker runs one full pass over the registry. *aggregate.Aggregator
// satisfies it.
type Checker interface {
	Run(ctx context.Context) domain.Report
}

// Runner executes checks on a fixed interval and records every report.
type Runner struct {
	Logger   *zap.Logger
	Checker  Checker
	Reports  repo.ReportStore
	Interval time.Duration

	mu sync.Mutex
}

func NewRunner(logger *zap.Logger, checker Checker, reports repo.ReportStore, interval time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Runner{
		Logger:   logger,
		Checker:  checker,
		Reports:  reports,
		Interval: interval,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// A zero interval disables the loop.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.Logger.Warn("runner_append_error", zap.Error(err))
	}
}

// RunOnce performs one check and stores the report. Calls are serialized so
// a manual trigger never overlaps a scheduled run. The report is returned
// even when storing it failed.
func (r *Runner) RunOnce(ctx context.Context) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := r.Checker.Run(ctx)
	if err := r.Reports.Append(ctx, &rep); err != nil {
		return rep, err
	}
	r.Logger.Debug("runner_recorded",
		zap.String("run_id", rep.RunID),
		zap.String("overall", string(rep.Overall())),
		zap.Int("errors", rep.Counts.Error),
	)
	return rep, nil
}
