package handlers

import (
	"net/http"

	"github.com/linesmerrill/court-case-portal/api"
	"github.com/linesmerrill/court-case-portal/casework"
)

// Hearing exported for testing purposes
type Hearing struct {
	M *casework.Mutator
}

type attendanceRequest struct {
	Status string `json:"status"`
}

// ScheduleHearingHandler schedules a hearing on the case in the path
func (h Hearing) ScheduleHearingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	caseID, ok := pathID(w, r, "case_id")
	if !ok {
		return
	}
	var in casework.ScheduleInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	scheduled, err := h.M.ScheduleHearing(ctx, caller, caseID, in)
	if err != nil {
		writeError(w, "failed to schedule hearing", err)
		return
	}
	writeJSON(w, http.StatusCreated, scheduled)
}

// HearingByIDHandler returns a single hearing
func (h Hearing) HearingByIDHandler(w http.ResponseWriter, r *http.Request) {
	hearingID, ok := pathID(w, r, "hearing_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := h.M.Hearing(ctx, hearingID)
	if err != nil {
		writeError(w, "failed to get hearing by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// EditHearingHandler changes the slot of a scheduled hearing
func (h Hearing) EditHearingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	hearingID, ok := pathID(w, r, "hearing_id")
	if !ok {
		return
	}
	var in casework.EditHearingInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	edited, err := h.M.EditHearing(ctx, caller, hearingID, in)
	if err != nil {
		writeError(w, "failed to edit hearing", err)
		return
	}
	writeJSON(w, http.StatusOK, edited)
}

// UpdateHearingStatusHandler applies a hearing status change. Adjourning
// needs a newDate in the body.
func (h Hearing) UpdateHearingStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	hearingID, ok := pathID(w, r, "hearing_id")
	if !ok {
		return
	}
	var in casework.HearingStatusInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.M.UpdateHearingStatus(ctx, caller, hearingID, in)
	if err != nil {
		writeError(w, "failed to update hearing status", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ConfirmAttendanceHandler records the caller's attendance answer
func (h Hearing) ConfirmAttendanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	hearingID, ok := pathID(w, r, "hearing_id")
	if !ok {
		return
	}
	var in attendanceRequest
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.M.ConfirmAttendance(ctx, caller, hearingID, in.Status)
	if err != nil {
		writeError(w, "failed to confirm attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
