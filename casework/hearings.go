package casework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

// CancelReason is written on a case closed because its hearing was cancelled
const CancelReason = "Hearing was cancelled"

const hearingTimeLayout = "Mon 2 Jan 2006 15:04 MST"

// ScheduleInput describes a new hearing
type ScheduleInput struct {
	Date     time.Time `json:"date"`
	Duration int       `json:"duration"` // minutes
	Type     string    `json:"type"`
	Location string    `json:"location"`
	Notes    string    `json:"notes"`
}

// EditHearingInput changes the details of a scheduled hearing. Nil fields
// are left alone.
type EditHearingInput struct {
	Date     *time.Time `json:"date,omitempty"`
	Duration *int       `json:"duration,omitempty"`
	Type     *string    `json:"type,omitempty"`
	Location *string    `json:"location,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

// HearingStatusInput is an officer's status change. Adjourning needs NewDate.
type HearingStatusInput struct {
	Status  lifecycle.HearingStatus `json:"status"`
	NewDate *time.Time              `json:"newDate,omitempty"`
	Reason  string                  `json:"reason"`
}

// liveHearingStatuses are hearings that may still sit
var liveHearingStatuses = []lifecycle.HearingStatus{
	lifecycle.HearingScheduled,
	lifecycle.HearingInProgress,
	lifecycle.HearingWaitingDecision,
	lifecycle.HearingAdjourned,
}

// caseTarget is the case status a hearing status cascades to
func caseTarget(s lifecycle.HearingStatus) (lifecycle.CaseStatus, bool) {
	switch s {
	case lifecycle.HearingInProgress:
		return lifecycle.CaseInProgress, true
	case lifecycle.HearingWaitingDecision:
		return lifecycle.CaseScheduledHearing, true
	case lifecycle.HearingCancelled:
		return lifecycle.CaseClosed, true
	case lifecycle.HearingCompleted:
		return lifecycle.CaseResolved, true
	}
	return "", false
}

func validateSlot(duration int, kind, location string) error {
	switch {
	case duration < models.MinHearingMinutes || duration > models.MaxHearingMinutes:
		return invalid("duration must be between %d and %d minutes", models.MinHearingMinutes, models.MaxHearingMinutes)
	case kind != models.HearingPhysical && kind != models.HearingVirtual:
		return invalid("hearing type must be %s or %s", models.HearingPhysical, models.HearingVirtual)
	case strings.TrimSpace(location) == "":
		return invalid("location is required")
	}
	return nil
}

// ScheduleHearing creates a hearing on an approved case and moves the case
// to scheduled-hearing
func (m *Mutator) ScheduleHearing(ctx context.Context, actor Actor, caseID primitive.ObjectID, in ScheduleInput) (*models.Hearing, error) {
	if !actor.isOfficer() {
		return nil, fmt.Errorf("only a court officer can schedule a hearing: %w", ErrForbidden)
	}
	if in.Date.IsZero() {
		return nil, invalid("hearing date is required")
	}
	if err := validateSlot(in.Duration, in.Type, in.Location); err != nil {
		return nil, err
	}
	c, err := m.Case(ctx, caseID)
	if err != nil {
		return nil, err
	}
	switch c.Details.Status {
	case lifecycle.CaseApproved, lifecycle.CaseScheduledHearing, lifecycle.CaseWaitingDecision:
	default:
		return nil, &lifecycle.Rejection{
			Entity: lifecycle.EntityCase,
			From:   string(c.Details.Status),
			To:     string(lifecycle.CaseScheduledHearing),
			Reason: fmt.Sprintf("hearings can only be scheduled on an approved case, this case is %s", c.Details.Status),
		}
	}
	if len(c.Details.AcceptedAdvocates()) == 0 {
		return nil, &lifecycle.Rejection{
			Entity: lifecycle.EntityCase,
			From:   string(c.Details.Status),
			To:     string(lifecycle.CaseScheduledHearing),
			Reason: "case needs an accepted advocate before a hearing can be scheduled",
		}
	}

	now := m.now()
	start := in.Date.UTC()
	attendees := []models.HearingAttendee{{
		UserID: c.Details.LitigantID,
		Role:   models.RoleLitigant,
		Status: models.AttendancePending,
	}}
	for _, id := range c.Details.AcceptedAdvocates() {
		attendees = append(attendees, models.HearingAttendee{UserID: id, Role: models.RoleAdvocate, Status: models.AttendancePending})
	}
	if c.Details.JudgeID != nil {
		attendees = append(attendees, models.HearingAttendee{UserID: *c.Details.JudgeID, Role: models.RoleJudge, Status: models.AttendancePending})
	}

	h := &models.Hearing{
		ID: primitive.NewObjectID(),
		Details: models.HearingDetails{
			CaseID:    c.ID,
			Date:      dt(start),
			Duration:  in.Duration,
			EndTime:   dt(models.HearingEnd(start, in.Duration)),
			Type:      in.Type,
			Location:  in.Location,
			Status:    lifecycle.HearingScheduled,
			Attendees: attendees,
			Notes:     in.Notes,
			CreatedBy: actor.ID,
			History: []models.StatusChange{{
				Action:    "scheduled",
				To:        string(lifecycle.HearingScheduled),
				ActorID:   actor.ref(),
				Timestamp: dt(now),
			}},
			CreatedAt: dt(now),
			UpdatedAt: dt(now),
		},
	}
	if _, err := m.Hearings.InsertOne(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to insert hearing: %w", err)
	}

	err = m.Cases.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{
		"$push": bson.M{"case.hearings": h.ID},
		"$set":  bson.M{"case.nextHearingDate": h.Details.Date, "case.updatedAt": dt(now)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link hearing to case %s: %w", c.ID.Hex(), err)
	}
	if c.Details.Status != lifecycle.CaseScheduledHearing {
		if err := m.transitionCase(ctx, c, lifecycle.CaseScheduledHearing, actor, "hearing scheduled", nil); err != nil {
			return nil, err
		}
	}

	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      models.NotificationHearingScheduled,
		Title:     "Hearing scheduled",
		Message:   fmt.Sprintf("A %s hearing for case %s is scheduled for %s at %s.", h.Details.Type, c.Details.CaseNumber, start.Format(hearingTimeLayout), h.Details.Location),
		CaseID:    ref(c.ID),
		HearingID: ref(h.ID),
	}, c.Details.Participants()...)
	return h, nil
}

// EditHearing changes the details of a hearing that has not started yet
func (m *Mutator) EditHearing(ctx context.Context, actor Actor, hearingID primitive.ObjectID, in EditHearingInput) (*models.Hearing, error) {
	if !actor.isOfficer() {
		return nil, fmt.Errorf("only a court officer can edit a hearing: %w", ErrForbidden)
	}
	h, err := m.Hearing(ctx, hearingID)
	if err != nil {
		return nil, err
	}
	if h.Details.Status != lifecycle.HearingScheduled {
		return nil, notScheduled(h)
	}

	d := h.Details
	if in.Date != nil {
		d.Date = dt(in.Date.UTC())
	}
	if in.Duration != nil {
		d.Duration = *in.Duration
	}
	if in.Type != nil {
		d.Type = *in.Type
	}
	if in.Location != nil {
		d.Location = *in.Location
	}
	if in.Notes != nil {
		d.Notes = *in.Notes
	}
	if err := validateSlot(d.Duration, d.Type, d.Location); err != nil {
		return nil, err
	}
	d.EndTime = dt(d.End())

	now := m.now()
	err = m.Hearings.UpdateOne(ctx,
		bson.M{"_id": h.ID, "hearing.status": lifecycle.HearingScheduled},
		bson.M{
			"$set": bson.M{
				"hearing.date":      d.Date,
				"hearing.duration":  d.Duration,
				"hearing.endTime":   d.EndTime,
				"hearing.type":      d.Type,
				"hearing.location":  d.Location,
				"hearing.notes":     d.Notes,
				"hearing.updatedAt": dt(now),
			},
			"$push": bson.M{"hearing.history": models.StatusChange{Action: "edited", ActorID: actor.ref(), Timestamp: dt(now)}},
		},
	)
	if errors.Is(err, databases.ErrNoMatch) {
		fresh, ferr := m.Hearing(ctx, h.ID)
		if ferr != nil {
			return nil, ferr
		}
		return nil, notScheduled(fresh)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update hearing %s: %w", h.ID.Hex(), err)
	}
	h.Details = d

	c, err := m.Case(ctx, h.Details.CaseID)
	if err != nil {
		return nil, err
	}
	if in.Date != nil {
		m.setNextHearingDate(ctx, c.ID, d.Date)
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      models.NotificationHearingUpdated,
		Title:     "Hearing updated",
		Message:   fmt.Sprintf("The hearing for case %s is now on %s at %s.", c.Details.CaseNumber, d.Start().Format(hearingTimeLayout), d.Location),
		CaseID:    ref(c.ID),
		HearingID: ref(h.ID),
	}, c.Details.Participants()...)
	return h, nil
}

func notScheduled(h *models.Hearing) error {
	return &lifecycle.Rejection{
		Entity: lifecycle.EntityHearing,
		From:   string(h.Details.Status),
		Reason: fmt.Sprintf("only scheduled hearings can be edited, this hearing is %s", h.Details.Status),
	}
}

func (m *Mutator) setNextHearingDate(ctx context.Context, caseID primitive.ObjectID, date primitive.DateTime) {
	err := m.Cases.UpdateOne(ctx, bson.M{"_id": caseID}, bson.M{"$set": bson.M{"case.nextHearingDate": date}})
	if err != nil {
		zap.S().Warnw("failed to update next hearing date", "caseId", caseID.Hex(), "error", err)
	}
}

// UpdateHearingStatus applies an officer's status change. Adjourning
// reschedules the hearing in place and puts it back to scheduled.
func (m *Mutator) UpdateHearingStatus(ctx context.Context, actor Actor, hearingID primitive.ObjectID, in HearingStatusInput) (*models.Hearing, error) {
	if !actor.isOfficer() {
		return nil, fmt.Errorf("only a court officer can change a hearing status: %w", ErrForbidden)
	}
	h, err := m.Hearing(ctx, hearingID)
	if err != nil {
		return nil, err
	}
	if in.Status == lifecycle.HearingAdjourned {
		if err := m.adjourn(ctx, actor, h, in); err != nil {
			return nil, err
		}
		return h, nil
	}

	if err := m.transitionHearing(ctx, h, in.Status, actor, in.Reason, nil); err != nil {
		return nil, err
	}
	if _, ok := caseTarget(in.Status); ok {
		// a failed case write is left for the reconciler, the marker is still unset
		if err := m.SettleHearing(ctx, h); err != nil && !IsRejection(err) {
			zap.S().Errorw("hearing updated but its case was not", "hearingId", h.ID.Hex(), "error", err)
		}
	}
	m.notifyHearing(ctx, actor, h, in.Reason)
	return h, nil
}

// notifyHearing tells the case participants about a hearing status change
func (m *Mutator) notifyHearing(ctx context.Context, actor Actor, h *models.Hearing, reason string) {
	var msgType models.NotificationType
	var title string
	switch h.Details.Status {
	case lifecycle.HearingInProgress:
		msgType, title = models.NotificationHearingStarted, "Hearing started"
	case lifecycle.HearingWaitingDecision:
		msgType, title = models.NotificationHearingEnded, "Hearing ended"
	case lifecycle.HearingCancelled:
		msgType, title = models.NotificationHearingCancelled, "Hearing cancelled"
	case lifecycle.HearingCompleted:
		msgType, title = models.NotificationHearingCompleted, "Hearing completed"
	default:
		msgType, title = models.NotificationHearingUpdated, "Hearing updated"
	}
	c, err := m.Case(ctx, h.Details.CaseID)
	if err != nil {
		zap.S().Warnw("no case to notify for hearing", "hearingId", h.ID.Hex(), "error", err)
		return
	}
	message := fmt.Sprintf("The hearing for case %s on %s is now %s.", c.Details.CaseNumber, h.Details.Start().Format(hearingTimeLayout), h.Details.Status)
	if reason != "" {
		message += " " + reason
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      msgType,
		Title:     title,
		Message:   message,
		CaseID:    ref(c.ID),
		HearingID: ref(h.ID),
	}, c.Details.Participants()...)
}

func (m *Mutator) adjourn(ctx context.Context, actor Actor, h *models.Hearing, in HearingStatusInput) error {
	from := h.Details.Status
	if err := lifecycle.ValidateHearing(from, lifecycle.HearingAdjourned); err != nil {
		return err
	}
	if err := lifecycle.ValidateHearing(lifecycle.HearingAdjourned, lifecycle.HearingScheduled); err != nil {
		return err
	}
	now := m.now()
	if in.NewDate == nil || !in.NewDate.After(now) {
		return invalid("adjourning a hearing needs a new date in the future")
	}

	newStart := in.NewDate.UTC()
	attendees := make([]models.HearingAttendee, len(h.Details.Attendees))
	for i, a := range h.Details.Attendees {
		a.Status = models.AttendancePending
		attendees[i] = a
	}
	adjournment := models.Adjournment{
		PreviousDate: h.Details.Date,
		NewDate:      dt(newStart),
		Reason:       in.Reason,
		AdjournedBy:  actor.ref(),
		AdjournedAt:  dt(now),
	}
	history := []models.StatusChange{
		{Action: "status", From: string(from), To: string(lifecycle.HearingAdjourned), ActorID: actor.ref(), Notes: in.Reason, Timestamp: dt(now)},
		{Action: "status", From: string(lifecycle.HearingAdjourned), To: string(lifecycle.HearingScheduled), ActorID: actor.ref(), Notes: "rescheduled", Timestamp: dt(now)},
	}
	err := m.Hearings.UpdateOne(ctx,
		bson.M{"_id": h.ID, "hearing.status": from},
		bson.M{
			"$set": bson.M{
				"hearing.status":    lifecycle.HearingScheduled,
				"hearing.date":      dt(newStart),
				"hearing.endTime":   dt(models.HearingEnd(newStart, h.Details.Duration)),
				"hearing.attendees": attendees,
				"hearing.updatedAt": dt(now),
			},
			"$push": bson.M{
				"hearing.adjournments": adjournment,
				"hearing.history":      bson.M{"$each": history},
			},
		},
	)
	if errors.Is(err, databases.ErrNoMatch) {
		return m.staleHearing(ctx, h.ID, lifecycle.HearingAdjourned)
	}
	if err != nil {
		return fmt.Errorf("failed to adjourn hearing %s: %w", h.ID.Hex(), err)
	}
	h.Details.Status = lifecycle.HearingScheduled
	h.Details.Date = dt(newStart)
	h.Details.EndTime = dt(models.HearingEnd(newStart, h.Details.Duration))
	h.Details.Attendees = attendees
	h.Details.Adjournments = append(h.Details.Adjournments, adjournment)
	h.Details.History = append(h.Details.History, history...)

	c, err := m.Case(ctx, h.Details.CaseID)
	if err != nil {
		return err
	}
	m.setNextHearingDate(ctx, c.ID, h.Details.Date)
	if c.Details.Status == lifecycle.CaseInProgress || c.Details.Status == lifecycle.CaseWaitingDecision {
		if err := m.transitionCase(ctx, c, lifecycle.CaseScheduledHearing, actor, "hearing adjourned", nil); err != nil && !IsRejection(err) {
			zap.S().Errorw("hearing adjourned but its case was not updated", "hearingId", h.ID.Hex(), "error", err)
		}
	}

	message := fmt.Sprintf("The hearing for case %s was adjourned to %s.", c.Details.CaseNumber, newStart.Format(hearingTimeLayout))
	if in.Reason != "" {
		message += " " + in.Reason
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      models.NotificationHearingAdjourned,
		Title:     "Hearing adjourned",
		Message:   message,
		CaseID:    ref(c.ID),
		HearingID: ref(h.ID),
	}, c.Details.Participants()...)
	return nil
}

// ConfirmAttendance records an attendee's answer to a hearing invitation
func (m *Mutator) ConfirmAttendance(ctx context.Context, actor Actor, hearingID primitive.ObjectID, status string) (*models.Hearing, error) {
	if status != models.AttendanceConfirmed && status != models.AttendanceDeclined {
		return nil, invalid("attendance must be %s or %s", models.AttendanceConfirmed, models.AttendanceDeclined)
	}
	h, err := m.Hearing(ctx, hearingID)
	if err != nil {
		return nil, err
	}
	if h.Details.Status.IsTerminal() {
		return nil, &lifecycle.Rejection{
			Entity: lifecycle.EntityHearing,
			From:   string(h.Details.Status),
			Reason: fmt.Sprintf("hearing is %s, attendance can no longer change", h.Details.Status),
		}
	}
	found := false
	attendees := make([]models.HearingAttendee, len(h.Details.Attendees))
	for i, a := range h.Details.Attendees {
		if a.UserID == actor.ID {
			a.Status = status
			found = true
		}
		attendees[i] = a
	}
	if !found {
		return nil, fmt.Errorf("user is not an attendee of hearing %s: %w", h.ID.Hex(), ErrForbidden)
	}
	err = m.Hearings.UpdateOne(ctx, bson.M{"_id": h.ID}, bson.M{"$set": bson.M{
		"hearing.attendees": attendees,
		"hearing.updatedAt": dt(m.now()),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to update attendance on hearing %s: %w", h.ID.Hex(), err)
	}
	h.Details.Attendees = attendees
	return h, nil
}

// StartHearing moves a hearing whose start time has arrived to in-progress
// and cascades its case. A hearing whose case is already terminal is left
// alone.
func (m *Mutator) StartHearing(ctx context.Context, h *models.Hearing) error {
	c, err := m.Case(ctx, h.Details.CaseID)
	if err != nil {
		return err
	}
	if c.Details.Status.IsTerminal() {
		return &lifecycle.Rejection{
			Entity: lifecycle.EntityHearing,
			From:   string(h.Details.Status),
			To:     string(lifecycle.HearingInProgress),
			Reason: fmt.Sprintf("case is %s, hearing will not be started", c.Details.Status),
		}
	}
	if err := m.transitionHearing(ctx, h, lifecycle.HearingInProgress, System, "hearing start time reached", nil); err != nil {
		return err
	}
	return m.SettleHearing(ctx, h)
}

// EndHearing moves an in-progress hearing whose end time has passed to
// waiting-decision and cascades its case back to scheduled-hearing
func (m *Mutator) EndHearing(ctx context.Context, h *models.Hearing) error {
	if err := m.transitionHearing(ctx, h, lifecycle.HearingWaitingDecision, System, "hearing end time reached", nil); err != nil {
		return err
	}
	m.notifyHearing(ctx, System, h, "")
	return m.SettleHearing(ctx, h)
}

// SettleHearing applies the case side of a hearing's current status and then
// marks the hearing settled. It re-reads the case every time, so it is safe
// to call again after a partial failure. A case that is terminal, already at
// the target, or that rejects the change still settles the hearing; any
// other error leaves it for the next attempt.
func (m *Mutator) SettleHearing(ctx context.Context, h *models.Hearing) error {
	target, ok := caseTarget(h.Details.Status)
	if !ok || h.Details.CascadeSettled {
		return nil
	}
	c, err := m.Case(ctx, h.Details.CaseID)
	if err != nil {
		return err
	}

	var cascadeErr error
	switch {
	case c.Details.Status.IsTerminal(), c.Details.Status == target:
	default:
		if h.Details.Status == lifecycle.HearingCancelled {
			live, err := m.Hearings.CountDocuments(ctx, bson.M{
				"_id":            bson.M{"$ne": h.ID},
				"hearing.caseId": c.ID,
				"hearing.status": bson.M{"$in": liveHearingStatuses},
			})
			if err != nil {
				return fmt.Errorf("failed to count hearings for case %s: %w", c.ID.Hex(), err)
			}
			if live > 0 {
				// the case still has a hearing to hold
				break
			}
		}
		cascadeErr = m.cascade(ctx, h, c, target)
	}
	if cascadeErr != nil && !IsRejection(cascadeErr) {
		return cascadeErr
	}

	err = m.Hearings.UpdateOne(ctx,
		bson.M{"_id": h.ID, "hearing.status": h.Details.Status},
		bson.M{"$set": bson.M{"hearing.cascadeSettled": true}},
	)
	if err != nil && !errors.Is(err, databases.ErrNoMatch) {
		return fmt.Errorf("failed to mark hearing %s settled: %w", h.ID.Hex(), err)
	}
	if err == nil {
		h.Details.CascadeSettled = true
	}
	return cascadeErr
}

func (m *Mutator) cascade(ctx context.Context, h *models.Hearing, c *models.Case, target lifecycle.CaseStatus) error {
	now := m.now()
	extra := bson.M{}
	note := fmt.Sprintf("hearing %s is %s", h.ID.Hex(), h.Details.Status)
	var msg *models.NotificationDetails

	switch target {
	case lifecycle.CaseClosed:
		extra["case.closeReason"] = CancelReason
		extra["case.closedAt"] = dt(now)
		note = CancelReason
		msg = &models.NotificationDetails{
			Type:    models.NotificationCaseClosed,
			Title:   "Case closed",
			Message: fmt.Sprintf("Case %s was closed because its hearing was cancelled.", c.Details.CaseNumber),
		}
	case lifecycle.CaseResolved:
		resolution := strings.TrimSpace(h.Details.Notes)
		if resolution == "" {
			resolution = fmt.Sprintf("Resolved after the hearing on %s", h.Details.Start().Format(hearingTimeLayout))
		}
		extra["case.resolution"] = resolution
		extra["case.resolvedAt"] = dt(now)
		msg = &models.NotificationDetails{
			Type:    models.NotificationCaseResolved,
			Title:   "Case resolved",
			Message: fmt.Sprintf("Case %s was resolved. %s", c.Details.CaseNumber, resolution),
		}
	}

	if err := m.transitionCase(ctx, c, target, System, note, extra); err != nil {
		return err
	}
	zap.S().Infow("case cascaded from hearing",
		"caseId", c.ID.Hex(),
		"hearingId", h.ID.Hex(),
		"hearingStatus", h.Details.Status,
		"caseStatus", target,
	)
	if msg != nil {
		msg.CaseID = ref(c.ID)
		msg.HearingID = ref(h.ID)
		m.notify(ctx, *msg, c.Details.Participants()...)
	}
	return nil
}
