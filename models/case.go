package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/lifecycle"
)

// Advocate sub-statuses inside a case
const (
	AdvocatePending  = "pending"
	AdvocateAccepted = "accepted"
)

// Payment statuses shared by cases, case requests and notifications
const (
	PaymentNone      = ""
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseDetails        `json:"case" bson:"case"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case details
type CaseDetails struct {
	// CaseNumber is assigned once on filing, e.g. "2026-00042"
	CaseNumber  string               `json:"caseNumber" bson:"caseNumber"`
	Title       string               `json:"title" bson:"title"`
	Description string               `json:"description" bson:"description"`
	CaseType    string               `json:"caseType" bson:"caseType"`
	Court       string               `json:"court" bson:"court"`
	Status      lifecycle.CaseStatus `json:"status" bson:"status"`

	LitigantID primitive.ObjectID   `json:"litigantId" bson:"litigantId"`
	Advocates  []CaseAdvocate       `json:"advocates" bson:"advocates"`
	JudgeID    *primitive.ObjectID  `json:"judgeId,omitempty" bson:"judgeId,omitempty"`
	Hearings   []primitive.ObjectID `json:"hearings" bson:"hearings"`
	Documents  []primitive.ObjectID `json:"documents" bson:"documents"`
	Notes      []CaseNote           `json:"notes" bson:"notes"`

	FilingDate      primitive.DateTime `json:"filingDate" bson:"filingDate"`
	NextHearingDate primitive.DateTime `json:"nextHearingDate,omitempty" bson:"nextHearingDate,omitempty"`

	PaymentAmount    float64            `json:"paymentAmount" bson:"paymentAmount"`
	PaymentStatus    string             `json:"paymentStatus" bson:"paymentStatus"`
	PaymentMethod    string             `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	PaymentReference string             `json:"paymentReference,omitempty" bson:"paymentReference,omitempty"`
	PaymentDate      primitive.DateTime `json:"paymentDate,omitempty" bson:"paymentDate,omitempty"`

	RejectedBy  *primitive.ObjectID `json:"rejectedBy,omitempty" bson:"rejectedBy,omitempty"`
	CloseReason string              `json:"closeReason,omitempty" bson:"closeReason,omitempty"`
	ClosedAt    primitive.DateTime  `json:"closedAt,omitempty" bson:"closedAt,omitempty"`
	Resolution  string              `json:"resolution,omitempty" bson:"resolution,omitempty"`
	ResolvedAt  primitive.DateTime  `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`

	// Audit trail
	History []StatusChange `json:"history" bson:"history"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// CaseAdvocate is one advocate attached to a case
type CaseAdvocate struct {
	AdvocateID primitive.ObjectID `json:"advocateId" bson:"advocateId"`
	Status     string             `json:"status" bson:"status"` // "pending", "accepted"
	AssignedAt primitive.DateTime `json:"assignedAt" bson:"assignedAt"`
}

// CaseNote is a free-text note owned by its author
type CaseNote struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	AuthorID  primitive.ObjectID `json:"authorId" bson:"authorId"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// StatusChange records a single applied transition on a case or hearing
type StatusChange struct {
	Action    string             `json:"action" bson:"action"`
	From      string             `json:"from,omitempty" bson:"from,omitempty"`
	To        string             `json:"to,omitempty" bson:"to,omitempty"`
	ActorID   string             `json:"actorId,omitempty" bson:"actorId,omitempty"` // empty for the reconciler
	Notes     string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Timestamp primitive.DateTime `json:"timestamp" bson:"timestamp"`
}

// AcceptedAdvocates returns the advocates that accepted the case, in order
func (c CaseDetails) AcceptedAdvocates() []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, a := range c.Advocates {
		if a.Status == AdvocateAccepted {
			ids = append(ids, a.AdvocateID)
		}
	}
	return ids
}

// Participants returns the litigant followed by every accepted advocate,
// without duplicates
func (c CaseDetails) Participants() []primitive.ObjectID {
	ids := []primitive.ObjectID{c.LitigantID}
	seen := map[primitive.ObjectID]bool{c.LitigantID: true}
	for _, id := range c.AcceptedAdvocates() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// HasAdvocate reports whether the advocate is in the case's advocate list
func (c CaseDetails) HasAdvocate(id primitive.ObjectID) bool {
	for _, a := range c.Advocates {
		if a.AdvocateID == id {
			return true
		}
	}
	return false
}
