package casework

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

// FileCaseInput is what a litigant supplies when filing a case
type FileCaseInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CaseType    string `json:"caseType"`
	Court       string `json:"court"`
}

// ReviewInput is an officer's decision on a pending case
type ReviewInput struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// CaseStatusInput is an officer's direct status change
type CaseStatusInput struct {
	Status lifecycle.CaseStatus `json:"status"`
	Note   string               `json:"note"`
}

// FileCase creates a case in pending-approval with a fresh case number
func (m *Mutator) FileCase(ctx context.Context, actor Actor, in FileCaseInput) (*models.Case, error) {
	if actor.isSystem() || actor.Role != models.RoleLitigant {
		return nil, fmt.Errorf("only a litigant can file a case: %w", ErrForbidden)
	}
	c, err := m.fileCase(ctx, actor, actor.ID, in)
	if err != nil {
		return nil, err
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID: actor.ID,
		Type:     models.NotificationCaseFiled,
		Title:    "Case filed",
		Message:  fmt.Sprintf("Your case %s (%s) was filed and is waiting for approval.", c.Details.CaseNumber, c.Details.Title),
		CaseID:   ref(c.ID),
	}, c.Details.LitigantID)
	return c, nil
}

func (m *Mutator) fileCase(ctx context.Context, actor Actor, litigantID primitive.ObjectID, in FileCaseInput) (*models.Case, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, invalid("case title is required")
	case strings.TrimSpace(in.CaseType) == "":
		return nil, invalid("case type is required")
	case strings.TrimSpace(in.Court) == "":
		return nil, invalid("court is required")
	}

	now := m.now()
	year := now.Year()
	seq, err := m.Counters.NextSequence(ctx, fmt.Sprintf("case-%d", year))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate case number: %w", err)
	}

	c := &models.Case{
		ID: primitive.NewObjectID(),
		Details: models.CaseDetails{
			CaseNumber:  fmt.Sprintf("%d-%05d", year, seq),
			Title:       in.Title,
			Description: in.Description,
			CaseType:    in.CaseType,
			Court:       in.Court,
			Status:      lifecycle.CasePendingApproval,
			LitigantID:  litigantID,
			Advocates:   []models.CaseAdvocate{},
			Hearings:    []primitive.ObjectID{},
			Documents:   []primitive.ObjectID{},
			Notes:       []models.CaseNote{},
			FilingDate:  dt(now),
			History: []models.StatusChange{{
				Action:    "filed",
				To:        string(lifecycle.CasePendingApproval),
				ActorID:   actor.ref(),
				Timestamp: dt(now),
			}},
			CreatedAt: dt(now),
			UpdatedAt: dt(now),
		},
	}
	if _, err := m.Cases.InsertOne(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to insert case: %w", err)
	}
	zap.S().Infow("case filed", "caseId", c.ID.Hex(), "caseNumber", c.Details.CaseNumber)
	return c, nil
}

// ReviewCase approves or rejects a case waiting for approval
func (m *Mutator) ReviewCase(ctx context.Context, actor Actor, caseID primitive.ObjectID, in ReviewInput) (*models.Case, error) {
	if !actor.isOfficer() {
		return nil, fmt.Errorf("only a court officer can review a case: %w", ErrForbidden)
	}
	c, err := m.Case(ctx, caseID)
	if err != nil {
		return nil, err
	}

	to, extra := lifecycle.CaseApproved, bson.M{}
	msgType, title := models.NotificationCaseApproved, "Case approved"
	if !in.Approve {
		to = lifecycle.CaseRejected
		extra["case.rejectedBy"] = actor.ID
		msgType, title = models.NotificationCaseRejected, "Case rejected"
	}
	if c.Details.JudgeID == nil && actor.Role == models.RoleJudge && in.Approve {
		extra["case.judgeId"] = actor.ID
	}
	if err := m.transitionCase(ctx, c, to, actor, in.Reason, extra); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Case %s (%s) was %s.", c.Details.CaseNumber, c.Details.Title, to)
	if in.Reason != "" {
		message += " " + in.Reason
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID: actor.ID,
		Type:     msgType,
		Title:    title,
		Message:  message,
		CaseID:   ref(c.ID),
	}, c.Details.Participants()...)
	return c, nil
}

// UpdateCaseStatus is an officer's direct status change
func (m *Mutator) UpdateCaseStatus(ctx context.Context, actor Actor, caseID primitive.ObjectID, in CaseStatusInput) (*models.Case, error) {
	if !actor.isOfficer() {
		return nil, fmt.Errorf("only a court officer can change a case status: %w", ErrForbidden)
	}
	c, err := m.Case(ctx, caseID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	extra := bson.M{}
	msgType := models.NotificationCaseStatus
	switch in.Status {
	case lifecycle.CaseClosed:
		reason := in.Note
		if reason == "" {
			reason = "Closed by the court"
		}
		extra["case.closeReason"] = reason
		extra["case.closedAt"] = dt(now)
		msgType = models.NotificationCaseClosed
	case lifecycle.CaseResolved:
		extra["case.resolution"] = in.Note
		extra["case.resolvedAt"] = dt(now)
		msgType = models.NotificationCaseResolved
	case lifecycle.CaseRejected:
		extra["case.rejectedBy"] = actor.ID
		msgType = models.NotificationCaseRejected
	case lifecycle.CaseApproved:
		msgType = models.NotificationCaseApproved
	}
	if err := m.transitionCase(ctx, c, in.Status, actor, in.Note, extra); err != nil {
		return nil, err
	}

	m.notify(ctx, models.NotificationDetails{
		SenderID: actor.ID,
		Type:     msgType,
		Title:    "Case status updated",
		Message:  fmt.Sprintf("Case %s (%s) is now %s.", c.Details.CaseNumber, c.Details.Title, in.Status),
		CaseID:   ref(c.ID),
	}, c.Details.Participants()...)
	return c, nil
}

// MarkCaseActive moves a case to in-progress once one of its hearings has
// started, and mirrors that onto the case's requests. It reports whether
// the case status changed.
func (m *Mutator) MarkCaseActive(ctx context.Context, caseID primitive.ObjectID) (bool, error) {
	c, err := m.Case(ctx, caseID)
	if err != nil {
		return false, err
	}
	if c.Details.Status == lifecycle.CaseInProgress || c.Details.Status.IsTerminal() {
		m.mirrorCaseStatus(ctx, c.ID, c.Details.Status)
		return false, nil
	}
	if err := m.transitionCase(ctx, c, lifecycle.CaseInProgress, System, "hearing started", nil); err != nil {
		return false, err
	}
	return true, nil
}
