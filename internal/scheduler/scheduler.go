// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type OverdueSweeper interface {
	MarkOverdueCredits(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper OverdueSweeper
	logger  logrus.FieldLogger
	timeout time.Duration
}

// New registers the overdue credit sweep on schedule, which accepts standard
// five-field specs and descriptors such as "@hourly". Each run gets timeout.
func New(schedule string, sweeper OverdueSweeper, logger logrus.FieldLogger, timeout time.Duration) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(logger)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper: sweeper,
		logger:  logger,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.SweepOverdue(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running one until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a job still running")
	}
}

// SweepOverdue runs one pass of the overdue credit job.
func (s *Scheduler) SweepOverdue(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	started := time.Now()
	touched, err := s.sweeper.MarkOverdueCredits(ctx)
	entry := s.logger.WithFields(logrus.Fields{
		"job":      "overdue_credits",
		"duration": time.Since(started).String(),
	})
	if err != nil {
		entry.WithError(err).Error("overdue sweep failed")
		return
	}
	entry.WithField("accounts", touched).Info("overdue sweep finished")
}
