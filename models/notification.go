package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NotificationType is the kind of a notification
type NotificationType string

// Notification types
const (
	NotificationCaseRequest         NotificationType = "case-request"
	NotificationCaseRequestAccepted NotificationType = "case-request-accepted"
	NotificationCaseRequestRejected NotificationType = "case-request-rejected"
	NotificationPayment             NotificationType = "payment"
	NotificationPaymentCompleted    NotificationType = "payment-completed"
	NotificationPaymentReceived     NotificationType = "payment-received"
	NotificationCaseFiled           NotificationType = "case-filed"
	NotificationCaseApproved        NotificationType = "case-approved"
	NotificationCaseRejected        NotificationType = "case-rejected"
	NotificationCaseStatus          NotificationType = "case-status"
	NotificationCaseClosed          NotificationType = "case-closed"
	NotificationCaseResolved        NotificationType = "case-resolved"
	NotificationHearingScheduled    NotificationType = "hearing-scheduled"
	NotificationHearingUpdated      NotificationType = "hearing-updated"
	NotificationHearingReminder     NotificationType = "hearing-reminder"
	NotificationHearingStarted      NotificationType = "hearing-started"
	NotificationHearingEnded        NotificationType = "hearing-ended"
	NotificationHearingAdjourned    NotificationType = "hearing-adjourned"
	NotificationHearingCancelled    NotificationType = "hearing-cancelled"
	NotificationHearingCompleted    NotificationType = "hearing-completed"
)

// Notification holds the structure for the notifications collection in mongo
type Notification struct {
	ID      primitive.ObjectID  `json:"_id" bson:"_id"`
	Details NotificationDetails `json:"notification" bson:"notification"`
	Version int32               `json:"__v" bson:"__v"`
}

// NotificationDetails holds the structure for the inner notification details
type NotificationDetails struct {
	RecipientID primitive.ObjectID `json:"recipientId" bson:"recipientId"`
	// SenderID is the zero ObjectID for notifications raised by the system
	SenderID primitive.ObjectID `json:"senderId" bson:"senderId"`
	Type     NotificationType   `json:"type" bson:"type"`
	Title    string             `json:"title" bson:"title"`
	Message  string             `json:"message" bson:"message"`

	CaseID     *primitive.ObjectID `json:"caseId,omitempty" bson:"caseId,omitempty"`
	HearingID  *primitive.ObjectID `json:"hearingId,omitempty" bson:"hearingId,omitempty"`
	DocumentID *primitive.ObjectID `json:"documentId,omitempty" bson:"documentId,omitempty"`
	RequestID  *primitive.ObjectID `json:"requestId,omitempty" bson:"requestId,omitempty"`

	IsRead           bool            `json:"isRead" bson:"isRead"`
	IsActionRequired bool            `json:"isActionRequired" bson:"isActionRequired"`
	PaymentDetails   *PaymentDetails `json:"paymentDetails,omitempty" bson:"paymentDetails,omitempty"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	ReadAt    primitive.DateTime `json:"readAt,omitempty" bson:"readAt,omitempty"`
}

// PaymentDetails is the payment sub-record of a payment notification
type PaymentDetails struct {
	Amount    float64            `json:"amount" bson:"amount"`
	Status    string             `json:"status" bson:"status"`
	Method    string             `json:"method,omitempty" bson:"method,omitempty"`
	Reference string             `json:"reference,omitempty" bson:"reference,omitempty"`
	PaidAt    primitive.DateTime `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}
