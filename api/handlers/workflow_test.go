package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

func (ta *testApp) fileCase(t *testing.T) models.Case {
	t.Helper()
	rr := ta.executeRequest(t, "POST", "/api/v1/cases", casework.FileCaseInput{
		Title:    "Boundary dispute",
		CaseType: "civil",
		Court:    "District Court 4",
	}, &ta.litigant)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c models.Case
	decodeBody(t, rr, &c)
	return c
}

// approvedCase files a case and has the advocate accept it without a fee
func (ta *testApp) approvedCase(t *testing.T) models.Case {
	t.Helper()
	c := ta.fileCase(t)
	rr := ta.executeRequest(t, "POST", "/api/v1/case-requests", casework.SubmitRequestInput{
		AdvocateID: ta.advocate.ID,
		CaseID:     &c.ID,
	}, &ta.litigant)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var r models.CaseRequest
	decodeBody(t, rr, &r)

	rr = ta.executeRequest(t, "PUT", "/api/v1/case-requests/"+r.ID.Hex()+"/respond", casework.RespondInput{Accept: true}, &ta.advocate)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return c
}

func (ta *testApp) scheduleHearing(t *testing.T, caseID primitive.ObjectID) models.Hearing {
	t.Helper()
	rr := ta.executeRequest(t, "POST", "/api/v1/cases/"+caseID.Hex()+"/hearings", casework.ScheduleInput{
		Date:     time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		Duration: 60,
		Type:     models.HearingPhysical,
		Location: "Courtroom 2",
	}, &ta.officer)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var h models.Hearing
	decodeBody(t, rr, &h)
	return h
}

func TestFileCaseHandler(t *testing.T) {
	ta := newTestApp(t)
	c := ta.fileCase(t)

	assert.Equal(t, lifecycle.CasePendingApproval, c.Details.Status)
	assert.Regexp(t, `^\d{4}-\d{5}$`, c.Details.CaseNumber)
	assert.Equal(t, ta.litigant.ID, c.Details.LitigantID)

	rr := ta.executeRequest(t, "POST", "/api/v1/cases", casework.FileCaseInput{Title: "x", CaseType: "civil", Court: "c"}, &ta.advocate)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.executeRequest(t, "POST", "/api/v1/cases", casework.FileCaseInput{CaseType: "civil", Court: "c"}, &ta.litigant)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFileCaseHandlerBadBody(t *testing.T) {
	ta := newTestApp(t)
	rr := ta.executeRequest(t, "POST", "/api/v1/cases", "not an object", &ta.litigant)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "failed to decode request body", errorMessage(t, rr))
}

func TestReviewWithoutAdvocateIsRejectedWithReason(t *testing.T) {
	ta := newTestApp(t)
	c := ta.fileCase(t)

	rr := ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/review", casework.ReviewInput{Approve: true}, &ta.officer)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "case needs an accepted advocate before it can be approved", errorMessage(t, rr))
}

func TestReviewRejectsCase(t *testing.T) {
	ta := newTestApp(t)
	c := ta.fileCase(t)

	rr := ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/review", casework.ReviewInput{Reason: "Out of jurisdiction"}, &ta.officer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got models.Case
	decodeBody(t, rr, &got)
	assert.Equal(t, lifecycle.CaseRejected, got.Details.Status)

	// terminal from here on
	rr = ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/status", casework.CaseStatusInput{Status: lifecycle.CaseApproved}, &ta.officer)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "case is rejected and can no longer change status", errorMessage(t, rr))
}

func TestUpdateCaseStatusHandler(t *testing.T) {
	ta := newTestApp(t)
	c := ta.approvedCase(t)

	rr := ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/status", casework.CaseStatusInput{Status: lifecycle.CaseClosed}, &ta.litigant)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/status", casework.CaseStatusInput{Status: "archived"}, &ta.officer)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/status", casework.CaseStatusInput{Status: lifecycle.CaseClosed}, &ta.officer)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "cannot move case from approved to closed", errorMessage(t, rr))

	ta.scheduleHearing(t, c.ID)
	rr = ta.executeRequest(t, "PUT", "/api/v1/cases/"+c.ID.Hex()+"/status", casework.CaseStatusInput{Status: lifecycle.CaseClosed, Note: "Settled out of court"}, &ta.officer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got models.Case
	decodeBody(t, rr, &got)
	assert.Equal(t, lifecycle.CaseClosed, got.Details.Status)

	rr = ta.executeRequest(t, "PUT", "/api/v1/cases/"+primitive.NewObjectID().Hex()+"/status", casework.CaseStatusInput{Status: lifecycle.CaseClosed}, &ta.officer)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScheduleAndCancelHearingClosesCase(t *testing.T) {
	ta := newTestApp(t)
	c := ta.approvedCase(t)
	h := ta.scheduleHearing(t, c.ID)
	assert.Equal(t, lifecycle.HearingScheduled, h.Details.Status)

	rr := ta.executeRequest(t, "GET", "/api/v1/cases/"+c.ID.Hex(), nil, &ta.litigant)
	var scheduled models.Case
	decodeBody(t, rr, &scheduled)
	assert.Equal(t, lifecycle.CaseScheduledHearing, scheduled.Details.Status)

	rr = ta.executeRequest(t, "PUT", "/api/v1/hearings/"+h.ID.Hex()+"/status", casework.HearingStatusInput{Status: lifecycle.HearingCancelled, Reason: "Judge unavailable"}, &ta.officer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cancelled models.Hearing
	decodeBody(t, rr, &cancelled)
	assert.Equal(t, lifecycle.HearingCancelled, cancelled.Details.Status)

	rr = ta.executeRequest(t, "GET", "/api/v1/cases/"+c.ID.Hex(), nil, &ta.litigant)
	var closed models.Case
	decodeBody(t, rr, &closed)
	assert.Equal(t, lifecycle.CaseClosed, closed.Details.Status)
}

func TestScheduledHearingCannotBeAdjourned(t *testing.T) {
	ta := newTestApp(t)
	c := ta.approvedCase(t)
	h := ta.scheduleHearing(t, c.ID)

	newDate := time.Now().Add(96 * time.Hour)
	rr := ta.executeRequest(t, "PUT", "/api/v1/hearings/"+h.ID.Hex()+"/status", casework.HearingStatusInput{Status: lifecycle.HearingAdjourned, NewDate: &newDate}, &ta.officer)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "cannot move hearing from scheduled to adjourned", errorMessage(t, rr))
}

func TestScheduleHearingOnPendingCase(t *testing.T) {
	ta := newTestApp(t)
	c := ta.fileCase(t)

	rr := ta.executeRequest(t, "POST", "/api/v1/cases/"+c.ID.Hex()+"/hearings", casework.ScheduleInput{
		Date:     time.Now().Add(24 * time.Hour),
		Duration: 30,
		Type:     models.HearingPhysical,
		Location: "Courtroom 1",
	}, &ta.officer)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorMessage(t, rr), "pending-approval")
}

func TestEditHearingAndAttendance(t *testing.T) {
	ta := newTestApp(t)
	c := ta.approvedCase(t)
	h := ta.scheduleHearing(t, c.ID)

	location := "Courtroom 9"
	rr := ta.executeRequest(t, "PATCH", "/api/v1/hearings/"+h.ID.Hex(), casework.EditHearingInput{Location: &location}, &ta.officer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var edited models.Hearing
	decodeBody(t, rr, &edited)
	assert.Equal(t, "Courtroom 9", edited.Details.Location)

	rr = ta.executeRequest(t, "PUT", "/api/v1/hearings/"+h.ID.Hex()+"/attendance", attendanceRequest{Status: models.AttendanceConfirmed}, &ta.advocate)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var confirmed models.Hearing
	decodeBody(t, rr, &confirmed)
	for _, a := range confirmed.Details.Attendees {
		if a.UserID == ta.advocate.ID {
			assert.Equal(t, models.AttendanceConfirmed, a.Status)
		}
	}

	rr = ta.executeRequest(t, "PUT", "/api/v1/hearings/"+h.ID.Hex()+"/attendance", attendanceRequest{Status: models.AttendanceConfirmed}, &ta.officer)
	assert.Equal(t, http.StatusForbidden, rr.Code, "the officer is not an attendee")

	rr = ta.executeRequest(t, "PUT", "/api/v1/hearings/"+h.ID.Hex()+"/attendance", attendanceRequest{Status: "maybe"}, &ta.litigant)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentFlow(t *testing.T) {
	ta := newTestApp(t)
	c := ta.fileCase(t)

	rr := ta.executeRequest(t, "POST", "/api/v1/case-requests", casework.SubmitRequestInput{AdvocateID: ta.advocate.ID, CaseID: &c.ID}, &ta.litigant)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var r models.CaseRequest
	decodeBody(t, rr, &r)

	rr = ta.executeRequest(t, "POST", "/api/v1/case-requests", casework.SubmitRequestInput{AdvocateID: ta.advocate.ID, CaseID: &c.ID}, &ta.litigant)
	assert.Equal(t, http.StatusConflict, rr.Code, "one open request per title and advocate")

	rr = ta.executeRequest(t, "PUT", "/api/v1/case-requests/"+r.ID.Hex()+"/respond", casework.RespondInput{Accept: true, PaymentAmount: 250}, &ta.advocate)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ta.executeRequest(t, "GET", "/api/v1/case-requests/"+r.ID.Hex(), nil, &ta.litigant)
	var pending models.CaseRequest
	decodeBody(t, rr, &pending)
	assert.Equal(t, lifecycle.RequestPaymentRequested, pending.Details.Status)

	// no body is fine
	rr = ta.executeRequest(t, "POST", "/api/v1/case-requests/"+r.ID.Hex()+"/simulate-payment", nil, &ta.litigant)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var paid models.CaseRequest
	decodeBody(t, rr, &paid)
	assert.Equal(t, lifecycle.RequestAccepted, paid.Details.Status)

	rr = ta.executeRequest(t, "GET", "/api/v1/cases/"+c.ID.Hex(), nil, &ta.litigant)
	var approved models.Case
	decodeBody(t, rr, &approved)
	assert.Equal(t, lifecycle.CaseApproved, approved.Details.Status)
	assert.Equal(t, models.PaymentCompleted, approved.Details.PaymentStatus)

	rr = ta.executeRequest(t, "POST", "/api/v1/case-requests/"+r.ID.Hex()+"/simulate-payment", map[string]string{"method": "card"}, &ta.litigant)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "already paid")
}

func TestNotificationsHandlers(t *testing.T) {
	ta := newTestApp(t)
	ta.fileCase(t)
	base := "/api/v1/users/" + ta.litigant.ID.Hex() + "/notifications"

	rr := ta.executeRequest(t, "GET", base, nil, &ta.litigant)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var list []models.Notification
	decodeBody(t, rr, &list)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationCaseFiled, list[0].Details.Type)
	assert.False(t, list[0].Details.IsRead)

	rr = ta.executeRequest(t, "GET", base, nil, &ta.advocate)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ta.executeRequest(t, "GET", base+"?limit=500", nil, &ta.litigant)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.executeRequest(t, "PUT", base+"/"+list[0].ID.Hex()+"/read", nil, &ta.litigant)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var read models.Notification
	decodeBody(t, rr, &read)
	assert.True(t, read.Details.IsRead)

	rr = ta.executeRequest(t, "GET", base+"?unread=true", nil, &ta.litigant)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = ta.executeRequest(t, "PUT", base+"/"+primitive.NewObjectID().Hex()+"/read", nil, &ta.litigant)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
