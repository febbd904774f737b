package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

// DefaultReminderLead is how far either side of a hearing start the
// reminder sweep looks
const DefaultReminderLead = 5 * time.Minute

// Reminder sends hearing reminders. It reports false when the reminder was
// suppressed as a repeat.
type Reminder interface {
	Remind(ctx context.Context, h *models.Hearing, c *models.Case, started bool) (int, bool)
}

// Reconciler advances hearings and cases whose status depends only on the
// clock. Every sweep reads current state, so running a cycle twice changes
// nothing the second time.
type Reconciler struct {
	Hearings  databases.HearingDatabase
	Mutator   *casework.Mutator
	Reminders Reminder
	Lead      time.Duration
	Now       func() time.Time
}

// NewReconciler returns a Reconciler on the wall clock
func NewReconciler(hearings databases.HearingDatabase, mutator *casework.Mutator, reminders Reminder, lead time.Duration) *Reconciler {
	if lead <= 0 {
		lead = DefaultReminderLead
	}
	return &Reconciler{
		Hearings:  hearings,
		Mutator:   mutator,
		Reminders: reminders,
		Lead:      lead,
		Now:       time.Now,
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

type sweep struct {
	name string
	run  func(ctx context.Context, now time.Time) error
}

// RunCycle runs the status sweeps followed by the reminder sweep
func (r *Reconciler) RunCycle(ctx context.Context) error {
	return multierr.Append(r.RunStatusSweeps(ctx), r.RunReminderSweep(ctx))
}

// RunStatusSweeps runs, in order, the cancelled, completed, start and end
// sweeps. A failing sweep does not stop the ones after it.
func (r *Reconciler) RunStatusSweeps(ctx context.Context) error {
	return r.runAll(ctx, []sweep{
		{"cancelled", r.sweepCancelled},
		{"completed", r.sweepCompleted},
		{"start", r.sweepStart},
		{"end", r.sweepEnd},
	})
}

// RunReminderSweep sends reminders for hearings starting around now
func (r *Reconciler) RunReminderSweep(ctx context.Context) error {
	return r.runAll(ctx, []sweep{{"reminder", r.sweepReminders}})
}

func (r *Reconciler) runAll(ctx context.Context, sweeps []sweep) error {
	var errs error
	for _, s := range sweeps {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, r.safely(ctx, s))
	}
	return errs
}

func (r *Reconciler) safely(ctx context.Context, s sweep) (err error) {
	defer func() {
		if p := recover(); p != nil {
			zap.S().Errorw("sweep panicked", "sweep", s.name, "panic", p)
			err = fmt.Errorf("%s sweep panicked: %v", s.name, p)
		}
	}()
	return s.run(ctx, r.now())
}

func (r *Reconciler) find(ctx context.Context, sweepName string, filter bson.M) ([]models.Hearing, error) {
	hearings, err := r.Hearings.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find hearings", "sweep", sweepName, "error", err)
		return nil, fmt.Errorf("%s sweep: %w", sweepName, err)
	}
	return hearings, nil
}

// outcome logs the result for one hearing and returns only the errors worth
// reporting for the cycle
func outcome(sweepName string, h *models.Hearing, err error) error {
	switch {
	case err == nil:
		return nil
	case casework.IsRejection(err):
		zap.S().Infow("hearing skipped", "sweep", sweepName, "hearingId", h.ID.Hex(), "reason", err.Error())
		return nil
	case errors.Is(err, casework.ErrNotFound):
		zap.S().Warnw("hearing skipped, record missing", "sweep", sweepName, "hearingId", h.ID.Hex(), "error", err)
		return nil
	case errors.Is(err, casework.ErrConflict):
		zap.S().Infow("hearing changed underneath the sweep", "sweep", sweepName, "hearingId", h.ID.Hex())
		return nil
	}
	zap.S().Errorw("sweep failed for hearing", "sweep", sweepName, "hearingId", h.ID.Hex(), "error", err)
	return fmt.Errorf("%s sweep: hearing %s: %w", sweepName, h.ID.Hex(), err)
}

func unsettled(status lifecycle.HearingStatus) bson.M {
	return bson.M{
		"hearing.status":         status,
		"hearing.cascadeSettled": bson.M{"$ne": true},
	}
}

// settle applies the pending case side of every hearing matched by filter
func (r *Reconciler) settle(ctx context.Context, sweepName string, filter bson.M) error {
	hearings, err := r.find(ctx, sweepName, filter)
	if err != nil {
		return err
	}
	var errs error
	for i := range hearings {
		h := &hearings[i]
		errs = multierr.Append(errs, outcome(sweepName, h, r.Mutator.SettleHearing(ctx, h)))
	}
	return errs
}

// sweepCancelled closes the cases of cancelled hearings
func (r *Reconciler) sweepCancelled(ctx context.Context, _ time.Time) error {
	return r.settle(ctx, "cancelled", unsettled(lifecycle.HearingCancelled))
}

// sweepCompleted resolves the cases of completed hearings
func (r *Reconciler) sweepCompleted(ctx context.Context, _ time.Time) error {
	return r.settle(ctx, "completed", unsettled(lifecycle.HearingCompleted))
}

// sweepStart starts hearings whose window contains now, then finishes any
// start cascade a previous cycle left half done
func (r *Reconciler) sweepStart(ctx context.Context, now time.Time) error {
	at := primitive.NewDateTimeFromTime(now)
	hearings, err := r.find(ctx, "start", bson.M{
		"hearing.status":  bson.M{"$in": []lifecycle.HearingStatus{lifecycle.HearingScheduled, lifecycle.HearingWaitingDecision}},
		"hearing.date":    bson.M{"$lte": at},
		"hearing.endTime": bson.M{"$gt": at},
	})
	if err != nil {
		return err
	}
	var errs error
	for i := range hearings {
		h := &hearings[i]
		if !h.Details.InSession(now) {
			continue
		}
		errs = multierr.Append(errs, outcome("start", h, r.Mutator.StartHearing(ctx, h)))
	}

	resume := unsettled(lifecycle.HearingInProgress)
	resume["hearing.endTime"] = bson.M{"$gt": at}
	return multierr.Append(errs, r.settle(ctx, "start", resume))
}

// sweepEnd moves hearings past their end time to waiting-decision
func (r *Reconciler) sweepEnd(ctx context.Context, now time.Time) error {
	hearings, err := r.find(ctx, "end", bson.M{
		"hearing.status":  lifecycle.HearingInProgress,
		"hearing.endTime": bson.M{"$lte": primitive.NewDateTimeFromTime(now)},
	})
	if err != nil {
		return err
	}
	var errs error
	for i := range hearings {
		h := &hearings[i]
		errs = multierr.Append(errs, outcome("end", h, r.Mutator.EndHearing(ctx, h)))
	}
	return multierr.Append(errs, r.settle(ctx, "end", unsettled(lifecycle.HearingWaitingDecision)))
}

// sweepReminders reminds participants of scheduled hearings starting within
// the lead either side of now. For hearings that have already started the
// case is also marked active.
func (r *Reconciler) sweepReminders(ctx context.Context, now time.Time) error {
	if r.Reminders == nil {
		return nil
	}
	hearings, err := r.find(ctx, "reminder", bson.M{
		"hearing.status": lifecycle.HearingScheduled,
		"hearing.date": bson.M{
			"$gte": primitive.NewDateTimeFromTime(now.Add(-r.Lead)),
			"$lte": primitive.NewDateTimeFromTime(now.Add(r.Lead)),
		},
	})
	if err != nil {
		return err
	}
	var errs error
	for i := range hearings {
		h := &hearings[i]
		c, err := r.Mutator.Case(ctx, h.Details.CaseID)
		if err != nil {
			errs = multierr.Append(errs, outcome("reminder", h, err))
			continue
		}
		if c.Details.Status.IsTerminal() {
			continue
		}
		started := !now.Before(h.Details.Start())
		if n, sent := r.Reminders.Remind(ctx, h, c, started); sent {
			zap.S().Infow("hearing reminder sent", "hearingId", h.ID.Hex(), "started", started, "recipients", n)
		}
		if started {
			_, err := r.Mutator.MarkCaseActive(ctx, c.ID)
			errs = multierr.Append(errs, outcome("reminder", h, err))
		}
	}
	return errs
}
