// Package casework applies validated status changes to cases, hearings and
// case requests and carries out the cascades between them. Each entity is
// written on its own, dependent entity first, with the current status in
// the update filter so that a concurrent writer turns a stale change into a
// rejection instead of a double apply.
package casework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

// Errors returned by the mutator. Transition rejections are returned as
// *lifecycle.Rejection instead.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// Actor is whoever asked for a change. The zero Actor is the system.
type Actor struct {
	ID   primitive.ObjectID
	Role string
}

// System is the actor recorded for reconciler driven changes
var System = Actor{}

func (a Actor) isSystem() bool {
	return a.ID.IsZero()
}

func (a Actor) ref() string {
	if a.isSystem() {
		return ""
	}
	return a.ID.Hex()
}

func (a Actor) isOfficer() bool {
	return a.Role == models.RoleCourtOfficer || a.Role == models.RoleJudge
}

// Notifier persists notifications on behalf of the mutator
type Notifier interface {
	Notify(ctx context.Context, msg models.NotificationDetails, recipients ...primitive.ObjectID) int
	PromotePayment(ctx context.Context, requestID primitive.ObjectID, paid models.PaymentDetails) error
}

// Mutator applies status changes and their cascades
type Mutator struct {
	Cases    databases.CaseDatabase
	Hearings databases.HearingDatabase
	Requests databases.CaseRequestDatabase
	Counters databases.CounterDatabase
	Notifier Notifier
	Now      func() time.Time
}

// New returns a Mutator using the wall clock
func New(
	cases databases.CaseDatabase,
	hearings databases.HearingDatabase,
	requests databases.CaseRequestDatabase,
	counters databases.CounterDatabase,
	notifier Notifier,
) *Mutator {
	return &Mutator{
		Cases:    cases,
		Hearings: hearings,
		Requests: requests,
		Counters: counters,
		Notifier: notifier,
		Now:      time.Now,
	}
}

func (m *Mutator) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func dt(t time.Time) primitive.DateTime {
	return primitive.NewDateTimeFromTime(t)
}

func ref(id primitive.ObjectID) *primitive.ObjectID {
	return &id
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// Case returns a case by id
func (m *Mutator) Case(ctx context.Context, id primitive.ObjectID) (*models.Case, error) {
	c, err := m.Cases.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("case %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find case %s: %w", id.Hex(), err)
	}
	return c, nil
}

// Hearing returns a hearing by id
func (m *Mutator) Hearing(ctx context.Context, id primitive.ObjectID) (*models.Hearing, error) {
	h, err := m.Hearings.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("hearing %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hearing %s: %w", id.Hex(), err)
	}
	return h, nil
}

// Request returns a case request by id
func (m *Mutator) Request(ctx context.Context, id primitive.ObjectID) (*models.CaseRequest, error) {
	r, err := m.Requests.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("case request %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find case request %s: %w", id.Hex(), err)
	}
	return r, nil
}

// transitionCase validates and writes a case status change. extra fields are
// written in the same update. On success c reflects the new status.
func (m *Mutator) transitionCase(ctx context.Context, c *models.Case, to lifecycle.CaseStatus, actor Actor, note string, extra bson.M) error {
	from := c.Details.Status
	if err := lifecycle.ValidateCase(from, to); err != nil {
		return err
	}
	if to.IsActive() && len(c.Details.AcceptedAdvocates()) == 0 {
		return &lifecycle.Rejection{
			Entity: lifecycle.EntityCase,
			From:   string(from),
			To:     string(to),
			Reason: fmt.Sprintf("case needs an accepted advocate before it can be %s", to),
		}
	}

	now := m.now()
	set := bson.M{
		"case.status":    to,
		"case.updatedAt": dt(now),
	}
	for k, v := range extra {
		set[k] = v
	}
	change := models.StatusChange{
		Action:    "status",
		From:      string(from),
		To:        string(to),
		ActorID:   actor.ref(),
		Notes:     note,
		Timestamp: dt(now),
	}
	err := m.Cases.UpdateOne(ctx,
		bson.M{"_id": c.ID, "case.status": from},
		bson.M{"$set": set, "$push": bson.M{"case.history": change}},
	)
	if errors.Is(err, databases.ErrNoMatch) {
		return m.staleCase(ctx, c.ID, to)
	}
	if err != nil {
		return fmt.Errorf("failed to update case %s: %w", c.ID.Hex(), err)
	}

	c.Details.Status = to
	c.Details.History = append(c.Details.History, change)
	m.mirrorCaseStatus(ctx, c.ID, to)
	return nil
}

// staleCase explains a compare-and-set miss from the case's current status
func (m *Mutator) staleCase(ctx context.Context, id primitive.ObjectID, to lifecycle.CaseStatus) error {
	fresh, err := m.Case(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.ValidateCase(fresh.Details.Status, to); err != nil {
		return err
	}
	return fmt.Errorf("case %s changed while it was being updated: %w", id.Hex(), ErrConflict)
}

// mirrorCaseStatus copies the case status onto its case requests
func (m *Mutator) mirrorCaseStatus(ctx context.Context, caseID primitive.ObjectID, status lifecycle.CaseStatus) {
	_, err := m.Requests.UpdateMany(ctx,
		bson.M{"caseRequest.caseId": caseID, "caseRequest.caseStatus": bson.M{"$ne": status}},
		bson.M{"$set": bson.M{"caseRequest.caseStatus": status, "caseRequest.updatedAt": dt(m.now())}},
	)
	if err != nil {
		zap.S().Warnw("failed to mirror case status onto case requests",
			"caseId", caseID.Hex(),
			"status", status,
			"error", err,
		)
	}
}

// transitionHearing validates and writes a hearing status change. Statuses
// with a case side reset the cascade marker in the same write.
func (m *Mutator) transitionHearing(ctx context.Context, h *models.Hearing, to lifecycle.HearingStatus, actor Actor, note string, extra bson.M) error {
	from := h.Details.Status
	if err := lifecycle.ValidateHearing(from, to); err != nil {
		return err
	}

	now := m.now()
	set := bson.M{
		"hearing.status":    to,
		"hearing.updatedAt": dt(now),
	}
	switch to {
	case lifecycle.HearingInProgress:
		set["hearing.startedAt"] = dt(now)
	case lifecycle.HearingWaitingDecision:
		set["hearing.endedAt"] = dt(now)
	case lifecycle.HearingCancelled:
		set["hearing.cancelledAt"] = dt(now)
	case lifecycle.HearingCompleted:
		set["hearing.completedAt"] = dt(now)
	}
	if _, ok := caseTarget(to); ok {
		set["hearing.cascadeSettled"] = false
	}
	for k, v := range extra {
		set[k] = v
	}
	change := models.StatusChange{
		Action:    "status",
		From:      string(from),
		To:        string(to),
		ActorID:   actor.ref(),
		Notes:     note,
		Timestamp: dt(now),
	}
	err := m.Hearings.UpdateOne(ctx,
		bson.M{"_id": h.ID, "hearing.status": from},
		bson.M{"$set": set, "$push": bson.M{"hearing.history": change}},
	)
	if errors.Is(err, databases.ErrNoMatch) {
		return m.staleHearing(ctx, h.ID, to)
	}
	if err != nil {
		return fmt.Errorf("failed to update hearing %s: %w", h.ID.Hex(), err)
	}

	h.Details.Status = to
	h.Details.CascadeSettled = false
	h.Details.History = append(h.Details.History, change)
	return nil
}

func (m *Mutator) staleHearing(ctx context.Context, id primitive.ObjectID, to lifecycle.HearingStatus) error {
	fresh, err := m.Hearing(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.ValidateHearing(fresh.Details.Status, to); err != nil {
		return err
	}
	return fmt.Errorf("hearing %s changed while it was being updated: %w", id.Hex(), ErrConflict)
}

// transitionRequest validates and writes a case request status change
func (m *Mutator) transitionRequest(ctx context.Context, r *models.CaseRequest, to lifecycle.RequestStatus, extra bson.M) error {
	from := r.Details.Status
	if err := lifecycle.ValidateRequest(from, to); err != nil {
		return err
	}
	set := bson.M{
		"caseRequest.status":    to,
		"caseRequest.updatedAt": dt(m.now()),
	}
	for k, v := range extra {
		set[k] = v
	}
	err := m.Requests.UpdateOne(ctx, bson.M{"_id": r.ID, "caseRequest.status": from}, bson.M{"$set": set})
	if errors.Is(err, databases.ErrNoMatch) {
		fresh, ferr := m.Request(ctx, r.ID)
		if ferr != nil {
			return ferr
		}
		if verr := lifecycle.ValidateRequest(fresh.Details.Status, to); verr != nil {
			return verr
		}
		return fmt.Errorf("case request %s changed while it was being updated: %w", r.ID.Hex(), ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update case request %s: %w", r.ID.Hex(), err)
	}
	r.Details.Status = to
	return nil
}

func (m *Mutator) notify(ctx context.Context, msg models.NotificationDetails, recipients ...primitive.ObjectID) {
	if m.Notifier == nil || len(recipients) == 0 {
		return
	}
	m.Notifier.Notify(ctx, msg, recipients...)
}

// IsRejection reports whether err is a transition rejection
func IsRejection(err error) bool {
	var rejection *lifecycle.Rejection
	return errors.As(err, &rejection)
}
