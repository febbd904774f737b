package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/lifecycle"
)

// CaseRequest holds the structure for the caserequests collection in mongo
type CaseRequest struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseRequestDetails `json:"caseRequest" bson:"caseRequest"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseRequestDetails holds the structure for the inner case request details
type CaseRequestDetails struct {
	LitigantID primitive.ObjectID  `json:"litigantId" bson:"litigantId"`
	AdvocateID primitive.ObjectID  `json:"advocateId" bson:"advocateId"`
	CaseID     *primitive.ObjectID `json:"caseId,omitempty" bson:"caseId,omitempty"`

	// Copied from the linked case, or entered fresh by the litigant
	CaseTitle       string `json:"caseTitle" bson:"caseTitle"`
	CaseDescription string `json:"caseDescription" bson:"caseDescription"`
	CaseType        string `json:"caseType" bson:"caseType"`
	Court           string `json:"court" bson:"court"`

	Status lifecycle.RequestStatus `json:"status" bson:"status"`
	// CaseStatus mirrors the linked case so both parties can list requests
	// without a join
	CaseStatus lifecycle.CaseStatus `json:"caseStatus,omitempty" bson:"caseStatus,omitempty"`

	Message  string `json:"message" bson:"message"`
	Response string `json:"response,omitempty" bson:"response,omitempty"`

	PaymentAmount    float64            `json:"paymentAmount" bson:"paymentAmount"`
	PaymentStatus    string             `json:"paymentStatus" bson:"paymentStatus"`
	PaymentMethod    string             `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	PaymentReference string             `json:"paymentReference,omitempty" bson:"paymentReference,omitempty"`
	PaymentDate      primitive.DateTime `json:"paymentDate,omitempty" bson:"paymentDate,omitempty"`

	RespondedAt primitive.DateTime `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt   primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
