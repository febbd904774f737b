package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/lifecycle"
)

// Hearing types
const (
	HearingPhysical = "physical"
	HearingVirtual  = "virtual"
)

// Duration bounds for a hearing, in minutes
const (
	MinHearingMinutes = 2
	MaxHearingMinutes = 180
)

// Attendee confirmation statuses
const (
	AttendancePending   = "pending"
	AttendanceConfirmed = "confirmed"
	AttendanceDeclined  = "declined"
)

// Hearing holds the structure for the hearings collection in mongo
type Hearing struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details HearingDetails     `json:"hearing" bson:"hearing"`
	Version int32              `json:"__v" bson:"__v"`
}

// HearingDetails holds the structure for the inner hearing details
type HearingDetails struct {
	CaseID primitive.ObjectID `json:"caseId" bson:"caseId"`

	Date     primitive.DateTime `json:"date" bson:"date"`
	Duration int                `json:"duration" bson:"duration"` // minutes
	EndTime  primitive.DateTime `json:"endTime" bson:"endTime"`

	Type     string                  `json:"type" bson:"type"`         // "physical", "virtual"
	Location string                  `json:"location" bson:"location"` // room/address or meeting link
	Status   lifecycle.HearingStatus `json:"status" bson:"status"`

	Attendees []HearingAttendee  `json:"attendees" bson:"attendees"`
	Notes     string             `json:"notes" bson:"notes"`
	CreatedBy primitive.ObjectID `json:"createdBy" bson:"createdBy"`

	Adjournments []Adjournment `json:"adjournments,omitempty" bson:"adjournments,omitempty"`

	// CascadeSettled is set once the case side of a cancelled or completed
	// hearing has been applied (or the case was already terminal)
	CascadeSettled bool `json:"cascadeSettled,omitempty" bson:"cascadeSettled,omitempty"`

	StartedAt   primitive.DateTime `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	EndedAt     primitive.DateTime `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	CancelledAt primitive.DateTime `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CompletedAt primitive.DateTime `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	History []StatusChange `json:"history" bson:"history"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// HearingAttendee is a participant expected at a hearing
type HearingAttendee struct {
	UserID primitive.ObjectID `json:"userId" bson:"userId"`
	Role   string             `json:"role" bson:"role"`
	Status string             `json:"status" bson:"status"` // "pending", "confirmed", "declined"
}

// Adjournment records one reschedule of a hearing
type Adjournment struct {
	PreviousDate primitive.DateTime `json:"previousDate" bson:"previousDate"`
	NewDate      primitive.DateTime `json:"newDate" bson:"newDate"`
	Reason       string             `json:"reason,omitempty" bson:"reason,omitempty"`
	AdjournedBy  string             `json:"adjournedBy,omitempty" bson:"adjournedBy,omitempty"`
	AdjournedAt  primitive.DateTime `json:"adjournedAt" bson:"adjournedAt"`
}

// HearingEnd derives the end time from a start and a duration in minutes
func HearingEnd(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

// Start returns the hearing start time in UTC
func (h HearingDetails) Start() time.Time {
	return h.Date.Time().UTC()
}

// End returns the hearing end time derived from start and duration, so a
// stale stored endTime never wins
func (h HearingDetails) End() time.Time {
	return HearingEnd(h.Start(), h.Duration)
}

// InSession reports whether now falls inside [start, end)
func (h HearingDetails) InSession(now time.Time) bool {
	return !now.Before(h.Start()) && now.Before(h.End())
}
