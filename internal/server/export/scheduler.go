package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is one export run.
type Job interface {
	Export(ctx context.Context) (*Snapshot, error)
}

// Scheduler runs a Job periodically on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	job      Job
	interval time.Duration
	logger   logging.Logger
}

func NewScheduler(job Job, interval time.Duration, l logging.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		job:      job,
		interval: interval,
		logger:   l.With("module", "export_scheduler"),
	}
}

// Spec returns the cron spec for the configured interval, rounded down to
// whole seconds with a one second minimum.
func (s *Scheduler) Spec() (string, error) {
	if s.interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), nil
}

// Run schedules the job and blocks until ctx is cancelled. A running
// export is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	spec, err := s.Spec()
	if err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) }); err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting export scheduler", "spec", spec)
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info(ctx, "Stopping export scheduler...")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	snap, err := s.job.Export(ctx)
	if err != nil {
		s.logger.Error(ctx, "scheduled export failed", "error", err)
		return
	}
	s.logger.Info(ctx, "scheduled export done", "key", snap.Key, "count", snap.Count)
}
