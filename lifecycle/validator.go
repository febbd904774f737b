package lifecycle

import "fmt"

// Rejection is returned when a requested status change is not a legal edge.
// Reason is written for people and is shown to API callers as is.
type Rejection struct {
	Entity Entity
	From   string
	To     string
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func reject(e Entity, from, to, format string, args ...interface{}) *Rejection {
	return &Rejection{Entity: e, From: from, To: to, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a transition for any entity using raw status strings.
// It returns nil when the move is legal and a *Rejection otherwise.
func Validate(entity Entity, from, to string) error {
	switch entity {
	case EntityHearing:
		return ValidateHearing(HearingStatus(from), HearingStatus(to))
	case EntityCase:
		return ValidateCase(CaseStatus(from), CaseStatus(to))
	case EntityCaseRequest:
		return ValidateRequest(RequestStatus(from), RequestStatus(to))
	}
	return reject(entity, from, to, "unknown entity type %q", string(entity))
}

// ValidateHearing checks a hearing status change
func ValidateHearing(from, to HearingStatus) error {
	if err := check(EntityHearing, string(from), string(to), from.Valid(), to.Valid(), from.IsTerminal()); err != nil {
		return err
	}
	if !contains(hearingTransitions[from], to) {
		return reject(EntityHearing, string(from), string(to), "cannot move hearing from %s to %s", from, to)
	}
	return nil
}

// ValidateCase checks a case status change
func ValidateCase(from, to CaseStatus) error {
	if err := check(EntityCase, string(from), string(to), from.Valid(), to.Valid(), from.IsTerminal()); err != nil {
		return err
	}
	if !contains(caseTransitions[from], to) {
		return reject(EntityCase, string(from), string(to), "cannot move case from %s to %s", from, to)
	}
	return nil
}

// ValidateRequest checks a case request status change
func ValidateRequest(from, to RequestStatus) error {
	if err := check(EntityCaseRequest, string(from), string(to), from.Valid(), to.Valid(), from.IsTerminal()); err != nil {
		return err
	}
	if !contains(requestTransitions[from], to) {
		return reject(EntityCaseRequest, string(from), string(to), "cannot move case request from %s to %s", from, to)
	}
	return nil
}

func check(e Entity, from, to string, fromOK, toOK, terminal bool) error {
	switch {
	case !fromOK:
		return reject(e, from, to, "%s has unknown status %q", e, from)
	case !toOK:
		return reject(e, from, to, "unknown %s status %q", e, to)
	case from == to:
		return reject(e, from, to, "%s is already %s", e, from)
	case terminal:
		return reject(e, from, to, "%s is %s and can no longer change status", e, from)
	}
	return nil
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// NextHearingStatuses returns the statuses reachable from s in one step
func NextHearingStatuses(s HearingStatus) []HearingStatus {
	return append([]HearingStatus(nil), hearingTransitions[s]...)
}

// NextCaseStatuses returns the statuses reachable from s in one step
func NextCaseStatuses(s CaseStatus) []CaseStatus {
	return append([]CaseStatus(nil), caseTransitions[s]...)
}
