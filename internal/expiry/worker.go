package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// SweepArgs is the periodic expiry sweep job. It carries no payload; the
// sweep always covers everything overdue.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "gig_expiry_sweep" }

// Sweeper is the lifecycle operation the worker drives.
type Sweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	lifecycle Sweeper
	logger    *slog.Logger
}

func NewSweepWorker(lifecycle Sweeper, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{lifecycle: lifecycle, logger: logger}
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	n, err := w.lifecycle.ExpireSweep(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info("expiry sweep", "expired", n)
	}
	return nil
}

// PeriodicJob schedules the sweep every five minutes. Expiry windows are
// hours long, so minute-level drift is immaterial.
func PeriodicJob() *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(5*time.Minute),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
