// Package housekeeping runs the in-process recurring maintenance dbcalm
// needs beyond the cron-driven backup schedule: a defence-in-depth sweep
// of expired AuthCodes and reconciliation of Process rows stuck in
// "running" after a crash.
//
// This is a distinct concern from internal/cronbridge: cronbridge renders
// the external /etc/cron.d fragment that drives backups; housekeeping is
// an ordinary in-process gocron.Scheduler, grounded directly on
// server/internal/scheduler.Scheduler's singleton-mode job-registration
// idiom.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// StuckProcessLiveness is how long a Process may sit in "running" before
// housekeeping considers it abandoned by a crashed service.
const StuckProcessLiveness = 10 * time.Minute

// Scheduler runs the authcode-purge and stuck-process-reconciliation jobs.
type Scheduler struct {
	cron       gocron.Scheduler
	authCodes  repository.AuthCodeRepository
	processes  repository.ProcessRepository
	logger     *zap.Logger
	isPidAlive func(pid int) bool
}

// New constructs a Scheduler. isPidAlive lets tests substitute a fake
// liveness check; pass nil to use the real OS check.
func New(authCodes repository.AuthCodeRepository, processes repository.ProcessRepository, logger *zap.Logger, isPidAlive func(pid int) bool) (*Scheduler, error) {
	cr, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("housekeeping: creating gocron scheduler: %w", err)
	}
	if isPidAlive == nil {
		isPidAlive = processAlive
	}
	return &Scheduler{cron: cr, authCodes: authCodes, processes: processes, logger: logger.Named("housekeeping"), isPidAlive: isPidAlive}, nil
}

// Start registers both recurring jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.purgeExpiredAuthCodes),
		gocron.WithTags("authcode-purge"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("housekeeping: scheduling authcode purge: %w", err)
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(s.reconcileStuckProcesses),
		gocron.WithTags("stuck-process-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("housekeeping: scheduling stuck-process reconciliation: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop gracefully shuts the scheduler down, waiting for any in-flight job.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

func (s *Scheduler) purgeExpiredAuthCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.authCodes.DeleteExpired(ctx, time.Now().UTC().Unix())
	if err != nil {
		s.logger.Error("authcode purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("purged expired auth codes", zap.Int64("count", n))
	}
}

func (s *Scheduler) reconcileStuckProcesses() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-StuckProcessLiveness)
	stuck, err := s.processes.ListRunningOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("stuck-process scan failed", zap.Error(err))
		return
	}

	for i := range stuck {
		p := &stuck[i]
		if s.isPidAlive(p.Pid) {
			continue
		}
		errText := "reconciled: no live pid found after crash"
		end := time.Now().UTC()
		p.Status = db.ProcessFailed
		p.Error = &errText
		p.EndTime = &end
		if err := s.processes.Update(ctx, p); err != nil {
			s.logger.Error("failed to reconcile stuck process",
				zap.Uint("process_id", p.ID), zap.Error(err))
			continue
		}
		s.logger.Warn("reconciled stuck process as failed", zap.Uint("process_id", p.ID))
	}
}
