/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *zap.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *zap.Logger, cfg config.Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.PendingExpirySchedule, s.jobs.ProcessPendingTransferExpiry); err != nil {
		s.logger.Error("failed to schedule pending transfer expiry job", zap.Error(err))
	} else {
		s.logger.Info("scheduled pending transfer expiry job", zap.String("schedule", s.config.PendingExpirySchedule))
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
