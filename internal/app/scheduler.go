/**
 * @description
 * Cron scheduler for the periodic work: the three maintenance sweeps and the
 * outbox flush.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/issuemint/debtors-agent/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	scanner *Scanner
	flusher *Flusher
	logger  *slog.Logger
	config  config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(scanner *Scanner, flusher *Flusher, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		scanner: scanner,
		flusher: flusher,
		logger:  logger,
		config:  cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.schedule("accounts sweep", s.config.AccountsScanSchedule, func(ctx context.Context) error {
		return s.scanner.ScanAccounts(ctx)
	})
	s.schedule("debtors sweep", s.config.DebtorsScanSchedule, func(ctx context.Context) error {
		return s.scanner.ScanDebtors(ctx)
	})
	s.schedule("transfers sweep", s.config.TransfersScanSchedule, func(ctx context.Context) error {
		return s.scanner.ScanTransfers(ctx)
	})
	s.schedule("outbox flush", s.config.OutboxFlushSchedule, func(ctx context.Context) error {
		return s.flusher.Flush(ctx)
	})
	s.cron.Start()
}

func (s *Scheduler) schedule(name, spec string, job func(ctx context.Context) error) {
	if _, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			s.logger.Error("job failed", "job", name, "error", err)
		}
	}); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
