// Package lifecycle holds the closed set of statuses for hearings, cases and
// case requests together with the legal transitions between them.
package lifecycle

// Entity names the kind of record a status belongs to
type Entity string

// Entities with a status lifecycle
const (
	EntityHearing     Entity = "hearing"
	EntityCase        Entity = "case"
	EntityCaseRequest Entity = "case request"
)

// HearingStatus is the status of a single hearing
type HearingStatus string

// Hearing statuses
const (
	HearingScheduled       HearingStatus = "scheduled"
	HearingInProgress      HearingStatus = "in-progress"
	HearingWaitingDecision HearingStatus = "waiting-decision"
	HearingAdjourned       HearingStatus = "adjourned"
	HearingCompleted       HearingStatus = "completed"
	HearingCancelled       HearingStatus = "cancelled"
)

// CaseStatus is the status of a case
type CaseStatus string

// Case statuses. pending-approval is the only pending value; older
// pending-judge/pending-hearing/pending spellings are not accepted.
const (
	CasePendingApproval  CaseStatus = "pending-approval"
	CaseApproved         CaseStatus = "approved"
	CaseRejected         CaseStatus = "rejected"
	CasePaymentRequested CaseStatus = "payment-requested"
	CaseScheduledHearing CaseStatus = "scheduled-hearing"
	CaseInProgress       CaseStatus = "in-progress"
	CaseWaitingDecision  CaseStatus = "waiting-decision"
	CaseResolved         CaseStatus = "resolved"
	CaseClosed           CaseStatus = "closed"
)

// RequestStatus is the status of a case request
type RequestStatus string

// Case request statuses
const (
	RequestPending          RequestStatus = "pending"
	RequestPaymentRequested RequestStatus = "payment-requested"
	RequestAccepted         RequestStatus = "accepted"
	RequestRejected         RequestStatus = "rejected"
)

var hearingTransitions = map[HearingStatus][]HearingStatus{
	HearingScheduled:       {HearingInProgress, HearingCancelled},
	HearingInProgress:      {HearingWaitingDecision, HearingAdjourned, HearingCancelled},
	HearingWaitingDecision: {HearingCompleted, HearingAdjourned, HearingCancelled},
	HearingAdjourned:       {HearingScheduled, HearingCancelled},
	HearingCompleted:       {},
	HearingCancelled:       {},
}

var caseTransitions = map[CaseStatus][]CaseStatus{
	// pending-approval -> payment-requested covers an advocate accepting
	// with a fee before any judge review
	CasePendingApproval:  {CaseApproved, CaseRejected, CasePaymentRequested, CaseInProgress},
	CaseApproved:         {CasePaymentRequested, CaseScheduledHearing, CaseInProgress},
	CasePaymentRequested: {CaseApproved, CaseInProgress},
	CaseScheduledHearing: {CaseInProgress, CaseWaitingDecision, CaseResolved, CaseClosed},
	CaseInProgress:       {CaseScheduledHearing, CaseWaitingDecision, CaseResolved, CaseClosed},
	CaseWaitingDecision:  {CaseScheduledHearing, CaseInProgress, CaseResolved, CaseClosed},
	CaseRejected:         {},
	CaseResolved:         {},
	CaseClosed:           {},
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:          {RequestPaymentRequested, RequestAccepted, RequestRejected},
	RequestPaymentRequested: {RequestAccepted, RequestRejected},
	RequestAccepted:         {},
	RequestRejected:         {},
}

// HearingStatuses returns every known hearing status
func HearingStatuses() []HearingStatus {
	return []HearingStatus{
		HearingScheduled, HearingInProgress, HearingWaitingDecision,
		HearingAdjourned, HearingCompleted, HearingCancelled,
	}
}

// CaseStatuses returns every known case status
func CaseStatuses() []CaseStatus {
	return []CaseStatus{
		CasePendingApproval, CaseApproved, CaseRejected, CasePaymentRequested,
		CaseScheduledHearing, CaseInProgress, CaseWaitingDecision, CaseResolved, CaseClosed,
	}
}

// RequestStatuses returns every known case request status
func RequestStatuses() []RequestStatus {
	return []RequestStatus{RequestPending, RequestPaymentRequested, RequestAccepted, RequestRejected}
}

// Valid reports whether s is a known hearing status
func (s HearingStatus) Valid() bool {
	_, ok := hearingTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s HearingStatus) IsTerminal() bool {
	next, ok := hearingTransitions[s]
	return ok && len(next) == 0
}

// Valid reports whether s is a known case status
func (s CaseStatus) Valid() bool {
	_, ok := caseTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s CaseStatus) IsTerminal() bool {
	next, ok := caseTransitions[s]
	return ok && len(next) == 0
}

// IsActive reports whether s belongs to the statuses that require at least
// one advocate on the case
func (s CaseStatus) IsActive() bool {
	switch s {
	case CaseApproved, CaseScheduledHearing, CaseInProgress:
		return true
	}
	return false
}

// Valid reports whether s is a known case request status
func (s RequestStatus) Valid() bool {
	_, ok := requestTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s RequestStatus) IsTerminal() bool {
	next, ok := requestTransitions[s]
	return ok && len(next) == 0
}

// IsOpen reports whether a request in status s blocks a duplicate request
// for the same litigant, advocate and case title
func (s RequestStatus) IsOpen() bool {
	return s == RequestPending || s == RequestPaymentRequested || s == RequestAccepted
}

// TerminalCaseStatuses lists the case statuses with no outbound transitions
func TerminalCaseStatuses() []CaseStatus {
	var out []CaseStatus
	for _, s := range CaseStatuses() {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}
