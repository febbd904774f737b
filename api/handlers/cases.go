package handlers

import (
	"net/http"

	"github.com/linesmerrill/court-case-portal/api"
	"github.com/linesmerrill/court-case-portal/casework"
)

// Case exported for testing purposes
type Case struct {
	M *casework.Mutator
}

// FileCaseHandler files a new case for the calling litigant
func (c Case) FileCaseHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	var in casework.FileCaseInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := c.M.FileCase(ctx, caller, in)
	if err != nil {
		writeError(w, "failed to file case", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CaseByIDHandler returns a single case
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(w, r, "case_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := c.M.Case(ctx, caseID)
	if err != nil {
		writeError(w, "failed to get case by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// ReviewCaseHandler approves or rejects a pending case
func (c Case) ReviewCaseHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	caseID, ok := pathID(w, r, "case_id")
	if !ok {
		return
	}
	var in casework.ReviewInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	reviewed, err := c.M.ReviewCase(ctx, caller, caseID, in)
	if err != nil {
		writeError(w, "failed to review case", err)
		return
	}
	writeJSON(w, http.StatusOK, reviewed)
}

// UpdateCaseStatusHandler moves a case to the requested status
func (c Case) UpdateCaseStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	caseID, ok := pathID(w, r, "case_id")
	if !ok {
		return
	}
	var in casework.CaseStatusInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := c.M.UpdateCaseStatus(ctx, caller, caseID, in)
	if err != nil {
		writeError(w, "failed to update case status", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
