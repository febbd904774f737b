package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/logging"
)

// Job names, also used as scheduler lock ids
const (
	StatusSweepJob   = "status_sweep"
	ReminderSweepJob = "reminder_sweep"
)

// Scheduler runs the reconciler on one cron with two jobs
type Scheduler struct {
	cron       *cron.Cron
	Reconciler *Reconciler
	LockDB     databases.SchedulerLockDatabase

	instanceID    string
	statusEvery   time.Duration
	reminderEvery time.Duration
	timeout       time.Duration
	lockTTL       time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(r *Reconciler, lockDB databases.SchedulerLockDatabase, conf *config.Config) *Scheduler {
	log := logging.New()
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logging.CronLogger(log)),
			cron.WithChain(
				cron.Recover(logging.CronLogger(log)),
				cron.SkipIfStillRunning(logging.CronLogger(log)),
			),
		),
		Reconciler:    r,
		LockDB:        lockDB,
		instanceID:    conf.InstanceID,
		statusEvery:   conf.StatusSweepInterval,
		reminderEvery: conf.ReminderSweepInterval,
		timeout:       conf.SweepTimeout,
		lockTTL:       conf.SchedulerLockTTL,
	}
}

// Start registers both jobs and starts the cron
func (s *Scheduler) Start() error {
	if s.statusEvery <= 0 || s.reminderEvery <= 0 {
		return fmt.Errorf("sweep intervals must be positive, got %s and %s", s.statusEvery, s.reminderEvery)
	}
	if _, err := s.cron.AddFunc(every(s.statusEvery), s.runStatusSweep); err != nil {
		return fmt.Errorf("failed to register %s job: %w", StatusSweepJob, err)
	}
	if _, err := s.cron.AddFunc(every(s.reminderEvery), s.runReminderSweep); err != nil {
		return fmt.Errorf("failed to register %s job: %w", ReminderSweepJob, err)
	}
	s.cron.Start()
	zap.S().Infow("reconciliation scheduler started",
		"instance", s.instanceID,
		"statusEvery", s.statusEvery.String(),
		"reminderEvery", s.reminderEvery.String(),
	)
	return nil
}

// Stop stops scheduling new runs and waits for running ones to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("reconciliation scheduler stopped")
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (s *Scheduler) runStatusSweep() {
	s.runLocked(StatusSweepJob, s.Reconciler.RunStatusSweeps)
}

func (s *Scheduler) runReminderSweep() {
	s.runLocked(ReminderSweepJob, s.Reconciler.RunReminderSweep)
}

// runLocked runs fn under the job's lock and reports whether it ran
func (s *Scheduler) runLocked(job string, fn func(context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, job, s.instanceID, s.lockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire scheduler lock", "job", job, "error", err)
		return false
	}
	if !acquired {
		zap.S().Debugw("job already running on another instance, skipping", "job", job)
		return false
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), job, s.instanceID); err != nil {
			zap.S().Warnw("failed to release scheduler lock", "job", job, "error", err)
		}
	}()

	started := time.Now()
	if err := fn(ctx); err != nil {
		zap.S().Errorw("job finished with errors", "job", job, "error", err, "took", time.Since(started).String())
		return true
	}
	zap.S().Debugw("job finished", "job", job, "took", time.Since(started).String())
	return true
}
