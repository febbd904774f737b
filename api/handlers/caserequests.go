package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/linesmerrill/court-case-portal/api"
	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/config"
)

// CaseRequest exported for testing purposes
type CaseRequest struct {
	M *casework.Mutator
}

// SubmitRequestHandler asks an advocate to take on a case
func (cr CaseRequest) SubmitRequestHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	var in casework.SubmitRequestInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	submitted, err := cr.M.SubmitRequest(ctx, caller, in)
	if err != nil {
		writeError(w, "failed to submit case request", err)
		return
	}
	writeJSON(w, http.StatusCreated, submitted)
}

// RequestByIDHandler returns a single case request
func (cr CaseRequest) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := cr.M.Request(ctx, requestID)
	if err != nil {
		writeError(w, "failed to get case request by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// RespondHandler accepts or rejects a case request
func (cr CaseRequest) RespondHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	var in casework.RespondInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	responded, err := cr.M.RespondToRequest(ctx, caller, requestID, in)
	if err != nil {
		writeError(w, "failed to respond to case request", err)
		return
	}
	writeJSON(w, http.StatusOK, responded)
}

// SimulatePaymentHandler completes the requested payment. The body is
// optional.
func (cr CaseRequest) SimulatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	var in casework.PaymentInput
	if !decodeOptional(w, r, &in) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	paid, err := cr.M.CompletePayment(ctx, caller, requestID, in)
	if err != nil {
		writeError(w, "failed to complete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, paid)
}

// decodeOptional is decode that accepts an empty body
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		config.ErrorStatus("failed to read request body", http.StatusBadRequest, w, err)
		return false
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return true
	}
	if err := json.Unmarshal(b, v); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}
