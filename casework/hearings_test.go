package casework_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

func TestScheduleHearing(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	start := f.clock.t.Add(48 * time.Hour)

	h := f.scheduledHearing(t, c, start, 45)
	assert.Equal(t, lifecycle.HearingScheduled, h.Details.Status)
	assert.Equal(t, start.Add(45*time.Minute), h.Details.EndTime.Time().UTC())
	require.Len(t, h.Details.Attendees, 2)
	assert.Equal(t, f.litigant.ID, h.Details.Attendees[0].UserID)
	assert.Equal(t, f.advocate.ID, h.Details.Attendees[1].UserID)
	for _, a := range h.Details.Attendees {
		assert.Equal(t, models.AttendancePending, a.Status)
	}

	stored := f.caseByID(t, c.ID)
	assert.Equal(t, lifecycle.CaseScheduledHearing, stored.Details.Status)
	assert.Equal(t, []primitive.ObjectID{h.ID}, stored.Details.Hearings)
	assert.Equal(t, start, stored.Details.NextHearingDate.Time().UTC())

	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationHearingScheduled), 1)
	assert.Len(t, f.notifications(t, f.advocate.ID, models.NotificationHearingScheduled), 1)

	// a second hearing on the same case keeps it in scheduled-hearing
	second := f.scheduledHearing(t, c, start.Add(24*time.Hour), 30)
	stored = f.caseByID(t, c.ID)
	assert.Equal(t, lifecycle.CaseScheduledHearing, stored.Details.Status)
	assert.Equal(t, []primitive.ObjectID{h.ID, second.ID}, stored.Details.Hearings)
}

func TestScheduleHearingValidation(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	start := f.clock.t.Add(time.Hour)

	cases := []struct {
		name string
		in   casework.ScheduleInput
	}{
		{"too short", casework.ScheduleInput{Date: start, Duration: 1, Type: models.HearingPhysical, Location: "Room 1"}},
		{"too long", casework.ScheduleInput{Date: start, Duration: 181, Type: models.HearingPhysical, Location: "Room 1"}},
		{"bad type", casework.ScheduleInput{Date: start, Duration: 30, Type: "phone", Location: "Room 1"}},
		{"no location", casework.ScheduleInput{Date: start, Duration: 30, Type: models.HearingVirtual}},
		{"no date", casework.ScheduleInput{Duration: 30, Type: models.HearingVirtual, Location: "link"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.m.ScheduleHearing(f.ctx, f.officer, c.ID, tc.in)
			assert.ErrorIs(t, err, casework.ErrInvalid)
		})
	}

	valid := casework.ScheduleInput{Date: start, Duration: 180, Type: models.HearingVirtual, Location: "link"}
	_, err := f.m.ScheduleHearing(f.ctx, f.litigant, c.ID, valid)
	assert.ErrorIs(t, err, casework.ErrForbidden)

	pending := f.fileCase(t)
	_, err = f.m.ScheduleHearing(f.ctx, f.officer, pending.ID, valid)
	requireRejection(t, err)

	assert.Zero(t, f.db.Len("hearings"))
}

func TestEditHearing(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	start := f.clock.t.Add(time.Hour)
	h := f.scheduledHearing(t, c, start, 30)

	duration := 90
	location := "Courtroom 5"
	got, err := f.m.EditHearing(f.ctx, f.officer, h.ID, casework.EditHearingInput{Duration: &duration, Location: &location})
	require.NoError(t, err)
	assert.Equal(t, start.Add(90*time.Minute), got.Details.EndTime.Time().UTC())

	stored := f.hearingByID(t, h.ID)
	assert.Equal(t, 90, stored.Details.Duration)
	assert.Equal(t, "Courtroom 5", stored.Details.Location)
	assert.Equal(t, start.Add(90*time.Minute), stored.Details.EndTime.Time().UTC())
	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationHearingUpdated), 1)

	tooLong := 500
	_, err = f.m.EditHearing(f.ctx, f.officer, h.ID, casework.EditHearingInput{Duration: &tooLong})
	assert.ErrorIs(t, err, casework.ErrInvalid)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.m.StartHearing(f.ctx, stored))
	_, err = f.m.EditHearing(f.ctx, f.officer, h.ID, casework.EditHearingInput{Location: &location})
	requireRejection(t, err)
}

func TestStartAndEndHearingCascade(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Minute), 30)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.m.StartHearing(f.ctx, h))
	assert.Equal(t, lifecycle.HearingInProgress, f.hearingByID(t, h.ID).Details.Status)
	assert.True(t, f.hearingByID(t, h.ID).Details.CascadeSettled)
	assert.Equal(t, lifecycle.CaseInProgress, f.caseByID(t, c.ID).Details.Status)

	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.m.EndHearing(f.ctx, h))
	ended := f.hearingByID(t, h.ID)
	assert.Equal(t, lifecycle.HearingWaitingDecision, ended.Details.Status)
	assert.Equal(t, f.clock.t, ended.Details.EndedAt.Time().UTC())
	assert.Equal(t, lifecycle.CaseScheduledHearing, f.caseByID(t, c.ID).Details.Status)
	assert.Len(t, f.notifications(t, f.advocate.ID, models.NotificationHearingEnded), 1)
}

func TestStartHearingOnTerminalCase(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t, 30)
	_, err := f.m.UpdateCaseStatus(f.ctx, f.officer, c.ID, casework.CaseStatusInput{Status: lifecycle.CaseClosed})
	require.NoError(t, err)

	requireRejection(t, f.m.StartHearing(f.ctx, h))
	assert.Equal(t, lifecycle.HearingScheduled, f.hearingByID(t, h.ID).Details.Status)
}

func TestStaleStartIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t, 30)

	// two sweeps read the same scheduled hearing
	first := f.hearingByID(t, h.ID)
	second := f.hearingByID(t, h.ID)

	require.NoError(t, f.m.StartHearing(f.ctx, first))
	rejection := requireRejection(t, f.m.StartHearing(f.ctx, second))
	assert.Equal(t, lifecycle.EntityHearing, rejection.Entity)

	stored := f.hearingByID(t, h.ID)
	assert.Equal(t, lifecycle.HearingInProgress, stored.Details.Status)
	inProgress := 0
	for _, change := range stored.Details.History {
		if change.To == string(lifecycle.HearingInProgress) {
			inProgress++
		}
	}
	assert.Equal(t, 1, inProgress)
}

func TestCancelHearingClosesCase(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Hour), 30)

	_, err := f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled, Reason: "Judge unavailable"})
	require.NoError(t, err)

	stored := f.hearingByID(t, h.ID)
	assert.Equal(t, lifecycle.HearingCancelled, stored.Details.Status)
	assert.True(t, stored.Details.CascadeSettled)

	closed := f.caseByID(t, c.ID)
	assert.Equal(t, lifecycle.CaseClosed, closed.Details.Status)
	assert.Equal(t, casework.CancelReason, closed.Details.CloseReason)
	assert.Empty(t, closed.Details.History[len(closed.Details.History)-1].ActorID)

	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationHearingCancelled), 1)
	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationCaseClosed), 1)
}

func TestCancelHearingKeepsCaseWithAnotherLiveHearing(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Hour), 30)
	f.scheduledHearing(t, c, f.clock.t.Add(48*time.Hour), 30)

	_, err := f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled})
	require.NoError(t, err)

	assert.True(t, f.hearingByID(t, h.ID).Details.CascadeSettled)
	assert.Equal(t, lifecycle.CaseScheduledHearing, f.caseByID(t, c.ID).Details.Status)
}

func TestCompleteHearingResolvesCase(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t, 30)
	require.NoError(t, f.m.StartHearing(f.ctx, h))
	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.m.EndHearing(f.ctx, h))

	_, err := f.m.UpdateHearingStatus(f.ctx, f.judge, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCompleted})
	require.NoError(t, err)

	resolved := f.caseByID(t, c.ID)
	assert.Equal(t, lifecycle.CaseResolved, resolved.Details.Status)
	assert.Contains(t, resolved.Details.Resolution, "Resolved after the hearing on")
	assert.Equal(t, f.clock.t, resolved.Details.ResolvedAt.Time().UTC())
	assert.Len(t, f.notifications(t, f.advocate.ID, models.NotificationCaseResolved), 1)

	_, err = f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled})
	requireRejection(t, err)
}

func TestHearingStatusSkippingAStepIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Hour), 30)

	_, err := f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCompleted})
	requireRejection(t, err)

	_, err = f.m.UpdateHearingStatus(f.ctx, f.litigant, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled})
	assert.ErrorIs(t, err, casework.ErrForbidden)

	assert.Equal(t, lifecycle.HearingScheduled, f.hearingByID(t, h.ID).Details.Status)
	assert.Equal(t, lifecycle.CaseScheduledHearing, f.caseByID(t, c.ID).Details.Status)
}

func TestAdjournHearing(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t, 30)
	_, err := f.m.ConfirmAttendance(f.ctx, f.litigant, h.ID, models.AttendanceConfirmed)
	require.NoError(t, err)
	require.NoError(t, f.m.StartHearing(f.ctx, f.hearingByID(t, h.ID)))

	past := f.clock.t.Add(-time.Hour)
	_, err = f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingAdjourned, NewDate: &past})
	assert.ErrorIs(t, err, casework.ErrInvalid)

	newDate := f.clock.t.Add(7 * 24 * time.Hour)
	got, err := f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{
		Status:  lifecycle.HearingAdjourned,
		NewDate: &newDate,
		Reason:  "Witness unavailable",
	})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.HearingScheduled, got.Details.Status)

	stored := f.hearingByID(t, h.ID)
	assert.Equal(t, lifecycle.HearingScheduled, stored.Details.Status)
	assert.Equal(t, newDate, stored.Details.Start())
	assert.Equal(t, newDate.Add(30*time.Minute), stored.Details.EndTime.Time().UTC())
	require.Len(t, stored.Details.Adjournments, 1)
	assert.Equal(t, "Witness unavailable", stored.Details.Adjournments[0].Reason)
	for _, a := range stored.Details.Attendees {
		assert.Equal(t, models.AttendancePending, a.Status)
	}

	adjournedCase := f.caseByID(t, c.ID)
	assert.Equal(t, lifecycle.CaseScheduledHearing, adjournedCase.Details.Status)
	assert.Equal(t, newDate, adjournedCase.Details.NextHearingDate.Time().UTC())
	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationHearingAdjourned), 1)

	// a scheduled hearing cannot be adjourned, only cancelled or started
	later := newDate.Add(24 * time.Hour)
	_, err = f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingAdjourned, NewDate: &later})
	requireRejection(t, err)
}

func TestConfirmAttendance(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Hour), 30)

	got, err := f.m.ConfirmAttendance(f.ctx, f.advocate, h.ID, models.AttendanceDeclined)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceDeclined, got.Details.Attendees[1].Status)
	assert.Equal(t, models.AttendancePending, f.hearingByID(t, h.ID).Details.Attendees[0].Status)
	assert.Equal(t, models.AttendanceDeclined, f.hearingByID(t, h.ID).Details.Attendees[1].Status)

	_, err = f.m.ConfirmAttendance(f.ctx, f.advocate, h.ID, "maybe")
	assert.ErrorIs(t, err, casework.ErrInvalid)

	_, err = f.m.ConfirmAttendance(f.ctx, f.officer, h.ID, models.AttendanceConfirmed)
	assert.ErrorIs(t, err, casework.ErrForbidden)

	_, err = f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled})
	require.NoError(t, err)
	_, err = f.m.ConfirmAttendance(f.ctx, f.litigant, h.ID, models.AttendanceConfirmed)
	requireRejection(t, err)
}

func TestSettleHearingResumesAfterCaseWriteFailure(t *testing.T) {
	f := newFixture(t)
	c := f.approvedCase(t)
	h := f.scheduledHearing(t, c, f.clock.t.Add(time.Hour), 30)

	f.db.FailNextWrite("cases", errors.New("connection reset"))
	_, err := f.m.UpdateHearingStatus(f.ctx, f.officer, h.ID, casework.HearingStatusInput{Status: lifecycle.HearingCancelled})
	require.NoError(t, err, "the hearing change itself went through")

	half := f.hearingByID(t, h.ID)
	assert.Equal(t, lifecycle.HearingCancelled, half.Details.Status)
	assert.False(t, half.Details.CascadeSettled)
	assert.Equal(t, lifecycle.CaseScheduledHearing, f.caseByID(t, c.ID).Details.Status)

	require.NoError(t, f.m.SettleHearing(f.ctx, half))
	assert.True(t, f.hearingByID(t, h.ID).Details.CascadeSettled)
	assert.Equal(t, lifecycle.CaseClosed, f.caseByID(t, c.ID).Details.Status)

	// settling again is a no-op
	require.NoError(t, f.m.SettleHearing(f.ctx, f.hearingByID(t, h.ID)))
	assert.Len(t, f.notifications(t, f.litigant.ID, models.NotificationCaseClosed), 1)
}
