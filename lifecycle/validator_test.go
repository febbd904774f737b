package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHearing(t *testing.T) {
	tests := []struct {
		from, to HearingStatus
		ok       bool
	}{
		{HearingScheduled, HearingInProgress, true},
		{HearingScheduled, HearingCancelled, true},
		{HearingScheduled, HearingCompleted, false},
		{HearingScheduled, HearingWaitingDecision, false},
		{HearingInProgress, HearingWaitingDecision, true},
		{HearingInProgress, HearingAdjourned, true},
		{HearingWaitingDecision, HearingCompleted, true},
		{HearingWaitingDecision, HearingInProgress, false},
		{HearingAdjourned, HearingScheduled, true},
		{HearingCompleted, HearingScheduled, false},
		{HearingCancelled, HearingScheduled, false},
		{HearingScheduled, HearingScheduled, false},
	}
	for _, tt := range tests {
		err := ValidateHearing(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestValidateCase(t *testing.T) {
	assert.NoError(t, ValidateCase(CasePendingApproval, CaseApproved))
	assert.NoError(t, ValidateCase(CasePaymentRequested, CaseApproved))
	assert.NoError(t, ValidateCase(CaseApproved, CaseInProgress))
	assert.NoError(t, ValidateCase(CaseInProgress, CaseScheduledHearing))
	assert.NoError(t, ValidateCase(CaseScheduledHearing, CaseClosed))
	assert.NoError(t, ValidateCase(CaseWaitingDecision, CaseResolved))

	assert.Error(t, ValidateCase(CaseApproved, CasePendingApproval))
	assert.Error(t, ValidateCase(CaseClosed, CaseInProgress))
	assert.Error(t, ValidateCase(CaseResolved, CaseClosed))
	assert.Error(t, ValidateCase(CaseRejected, CaseApproved))

	// outcomes only follow a hearing
	assert.Error(t, ValidateCase(CasePaymentRequested, CaseRejected))
	assert.Error(t, ValidateCase(CasePaymentRequested, CaseResolved))
	assert.Error(t, ValidateCase(CasePaymentRequested, CaseClosed))
	assert.Error(t, ValidateCase(CasePendingApproval, CaseClosed))
	assert.Error(t, ValidateCase(CaseApproved, CaseClosed))
	assert.Error(t, ValidateCase(CaseApproved, CaseResolved))
	assert.NoError(t, ValidateCase(CasePendingApproval, CasePaymentRequested))
	assert.NoError(t, ValidateCase(CasePaymentRequested, CaseInProgress))
}

func TestValidateCaseTerminalStatusesHaveNoExits(t *testing.T) {
	for _, from := range TerminalCaseStatuses() {
		for _, to := range CaseStatuses() {
			assert.Error(t, ValidateCase(from, to), "%s -> %s", from, to)
		}
	}
	assert.ElementsMatch(t, []CaseStatus{CaseRejected, CaseResolved, CaseClosed}, TerminalCaseStatuses())
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(RequestPending, RequestPaymentRequested))
	assert.NoError(t, ValidateRequest(RequestPaymentRequested, RequestAccepted))
	assert.NoError(t, ValidateRequest(RequestPending, RequestRejected))
	assert.Error(t, ValidateRequest(RequestAccepted, RequestRejected))
	assert.Error(t, ValidateRequest(RequestRejected, RequestPending))
}

func TestValidateRejectionReason(t *testing.T) {
	err := Validate(EntityHearing, "completed", "scheduled")
	require.Error(t, err)

	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, EntityHearing, rej.Entity)
	assert.Equal(t, "hearing is completed and can no longer change status", rej.Reason)
	assert.Equal(t, rej.Reason, err.Error())

	err = Validate(EntityCase, "approved", "approved")
	require.Error(t, err)
	assert.Equal(t, "case is already approved", err.Error())

	err = Validate(EntityHearing, "scheduled", "completed")
	assert.EqualError(t, err, "cannot move hearing from scheduled to completed")
}

func TestValidateUnknownStatuses(t *testing.T) {
	assert.EqualError(t, Validate(EntityCase, "pending-judge", "approved"), `case has unknown status "pending-judge"`)
	assert.EqualError(t, Validate(EntityCase, "approved", "pending"), `unknown case status "pending"`)
	assert.EqualError(t, Validate(Entity("document"), "a", "b"), `unknown entity type "document"`)
}

func TestCaseStatusIsActive(t *testing.T) {
	var active []CaseStatus
	for _, s := range CaseStatuses() {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	assert.ElementsMatch(t, []CaseStatus{CaseApproved, CaseScheduledHearing, CaseInProgress}, active)
}

func TestRequestStatusIsOpen(t *testing.T) {
	assert.True(t, RequestPending.IsOpen())
	assert.True(t, RequestPaymentRequested.IsOpen())
	assert.True(t, RequestAccepted.IsOpen())
	assert.False(t, RequestRejected.IsOpen())
}

func TestNextHearingStatusesIsACopy(t *testing.T) {
	next := NextHearingStatuses(HearingScheduled)
	next[0] = HearingCompleted
	assert.Equal(t, HearingInProgress, NextHearingStatuses(HearingScheduled)[0])
	assert.Empty(t, NextHearingStatuses(HearingCancelled))
}
