// Package docs Court Case Portal API.
//
// Documentation of the Court Case Portal API. Every /api/v1 route expects
// the caller in the X-User-ID and X-User-Role headers.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// A status change that is not allowed. The message is the reason.
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

// swagger:route POST /api/v1/cases cases fileCase
// Files a new case for the calling litigant. It starts as pending-approval.
// responses:
//   201: caseResponse
//   400: errorResponse
//   403: errorResponse

// swagger:parameters fileCase
type fileCaseParamsWrapper struct {
	// in:body
	Body casework.FileCaseInput
}

// swagger:route GET /api/v1/cases/{case_id} cases caseByID
// Gets a single case by ID.
// responses:
//   200: caseResponse
//   404: errorResponse

// swagger:route PUT /api/v1/cases/{case_id}/review cases reviewCase
// Approves or rejects a pending case. Officers only.
// responses:
//   200: caseResponse
//   400: errorResponse

// swagger:parameters reviewCase
type reviewCaseParamsWrapper struct {
	// in:body
	Body casework.ReviewInput
}

// swagger:route PUT /api/v1/cases/{case_id}/status cases updateCaseStatus
// Moves a case to a new status. Officers only.
// responses:
//   200: caseResponse
//   400: errorResponse
//   409: errorResponse

// swagger:parameters updateCaseStatus
type caseStatusParamsWrapper struct {
	// in:body
	Body casework.CaseStatusInput
}

// A single case
// swagger:response caseResponse
type caseResponseWrapper struct {
	// in:body
	Body models.Case
}

// swagger:route POST /api/v1/cases/{case_id}/hearings hearings scheduleHearing
// Schedules a hearing on an approved case.
// responses:
//   201: hearingResponse
//   400: errorResponse

// swagger:parameters scheduleHearing
type scheduleHearingParamsWrapper struct {
	// in:body
	Body casework.ScheduleInput
}

// swagger:route PATCH /api/v1/hearings/{hearing_id} hearings editHearing
// Changes the slot of a scheduled hearing.
// responses:
//   200: hearingResponse
//   400: errorResponse

// swagger:parameters editHearing
type editHearingParamsWrapper struct {
	// in:body
	Body casework.EditHearingInput
}

// swagger:route PUT /api/v1/hearings/{hearing_id}/status hearings updateHearingStatus
// Changes a hearing's status. Adjourning needs newDate.
// responses:
//   200: hearingResponse
//   400: errorResponse

// swagger:parameters updateHearingStatus
type hearingStatusParamsWrapper struct {
	// in:body
	Body casework.HearingStatusInput
}

// A single hearing
// swagger:response hearingResponse
type hearingResponseWrapper struct {
	// in:body
	Body models.Hearing
}

// swagger:route POST /api/v1/case-requests caseRequests submitRequest
// Asks an advocate to take on a case.
// responses:
//   201: caseRequestResponse
//   409: errorResponse

// swagger:parameters submitRequest
type submitRequestParamsWrapper struct {
	// in:body
	Body casework.SubmitRequestInput
}

// swagger:route PUT /api/v1/case-requests/{request_id}/respond caseRequests respondToRequest
// Accepts or rejects a case request. Accepting with a paymentAmount asks for payment first.
// responses:
//   200: caseRequestResponse
//   400: errorResponse

// swagger:parameters respondToRequest
type respondParamsWrapper struct {
	// in:body
	Body casework.RespondInput
}

// swagger:route POST /api/v1/case-requests/{request_id}/simulate-payment caseRequests simulatePayment
// Completes a requested payment.
// responses:
//   200: caseRequestResponse
//   400: errorResponse

// A single case request
// swagger:response caseRequestResponse
type caseRequestResponseWrapper struct {
	// in:body
	Body models.CaseRequest
}

// swagger:route GET /api/v1/users/{user_id}/notifications notifications notificationsByUser
// Lists the caller's notifications, newest first.
// responses:
//   200: notificationsResponse
//   403: errorResponse

// The caller's notifications
// swagger:response notificationsResponse
type notificationsResponseWrapper struct {
	// in:body
	Body []models.Notification
}
