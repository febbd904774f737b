package casework

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
)

// SubmitRequestInput is a litigant's proposal to an advocate. CaseID links
// an existing case whose details are copied over the typed ones.
type SubmitRequestInput struct {
	AdvocateID      primitive.ObjectID  `json:"advocateId"`
	CaseID          *primitive.ObjectID `json:"caseId,omitempty"`
	CaseTitle       string              `json:"caseTitle"`
	CaseDescription string              `json:"caseDescription"`
	CaseType        string              `json:"caseType"`
	Court           string              `json:"court"`
	Message         string              `json:"message"`
}

// RespondInput is an advocate's answer to a case request
type RespondInput struct {
	Accept        bool    `json:"accept"`
	PaymentAmount float64 `json:"paymentAmount"`
	Response      string  `json:"response"`
}

// PaymentInput completes the payment asked for on an accepted request
type PaymentInput struct {
	Method string `json:"method"`
}

// DefaultPaymentMethod is recorded when the litigant does not name one
const DefaultPaymentMethod = "simulated"

func openRequestStatuses() []lifecycle.RequestStatus {
	var open []lifecycle.RequestStatus
	for _, s := range lifecycle.RequestStatuses() {
		if s.IsOpen() {
			open = append(open, s)
		}
	}
	return open
}

// SubmitRequest records a case request from a litigant to an advocate. Only
// one open request may exist per litigant, advocate and case title.
func (m *Mutator) SubmitRequest(ctx context.Context, actor Actor, in SubmitRequestInput) (*models.CaseRequest, error) {
	if actor.isSystem() || actor.Role != models.RoleLitigant {
		return nil, fmt.Errorf("only a litigant can send a case request: %w", ErrForbidden)
	}
	if in.AdvocateID.IsZero() {
		return nil, invalid("advocateId is required")
	}

	details := models.CaseRequestDetails{
		LitigantID:      actor.ID,
		AdvocateID:      in.AdvocateID,
		CaseTitle:       strings.TrimSpace(in.CaseTitle),
		CaseDescription: in.CaseDescription,
		CaseType:        in.CaseType,
		Court:           in.Court,
		Status:          lifecycle.RequestPending,
		Message:         in.Message,
		PaymentStatus:   models.PaymentNone,
	}
	var linked *models.Case
	if in.CaseID != nil {
		c, err := m.Case(ctx, *in.CaseID)
		if err != nil {
			return nil, err
		}
		if c.Details.LitigantID != actor.ID {
			return nil, fmt.Errorf("case %s belongs to another litigant: %w", c.ID.Hex(), ErrForbidden)
		}
		if c.Details.Status.IsTerminal() {
			return nil, &lifecycle.Rejection{
				Entity: lifecycle.EntityCase,
				From:   string(c.Details.Status),
				Reason: fmt.Sprintf("case is %s and can no longer take an advocate", c.Details.Status),
			}
		}
		details.CaseID = ref(c.ID)
		details.CaseTitle = c.Details.Title
		details.CaseDescription = c.Details.Description
		details.CaseType = c.Details.CaseType
		details.Court = c.Details.Court
		details.CaseStatus = c.Details.Status
		linked = c
	}
	switch {
	case details.CaseTitle == "":
		return nil, invalid("caseTitle is required")
	case strings.TrimSpace(details.CaseType) == "":
		return nil, invalid("caseType is required")
	case strings.TrimSpace(details.Court) == "":
		return nil, invalid("court is required")
	}

	open, err := m.Requests.CountDocuments(ctx, bson.M{
		"caseRequest.litigantId": actor.ID,
		"caseRequest.advocateId": in.AdvocateID,
		"caseRequest.caseTitle":  details.CaseTitle,
		"caseRequest.status":     bson.M{"$in": openRequestStatuses()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check open case requests: %w", err)
	}
	if open > 0 {
		return nil, fmt.Errorf("an open request to this advocate already exists for %q: %w", details.CaseTitle, ErrConflict)
	}

	now := m.now()
	details.CreatedAt = dt(now)
	details.UpdatedAt = dt(now)
	r := &models.CaseRequest{ID: primitive.NewObjectID(), Details: details}
	if _, err := m.Requests.InsertOne(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to insert case request: %w", err)
	}

	msg := models.NotificationDetails{
		SenderID:         actor.ID,
		Type:             models.NotificationCaseRequest,
		Title:            "New case request",
		Message:          fmt.Sprintf("You have been asked to represent a litigant in %q.", details.CaseTitle),
		RequestID:        ref(r.ID),
		IsActionRequired: true,
	}
	if linked != nil {
		msg.CaseID = ref(linked.ID)
	}
	m.notify(ctx, msg, in.AdvocateID)
	return r, nil
}

// RespondToRequest applies an advocate's accept or reject. Accepting with a
// fee asks the litigant to pay before the case is approved; accepting
// without one approves the case straight away. Accepting a request with no
// linked case files one for the litigant.
func (m *Mutator) RespondToRequest(ctx context.Context, actor Actor, requestID primitive.ObjectID, in RespondInput) (*models.CaseRequest, error) {
	r, err := m.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != r.Details.AdvocateID {
		return nil, fmt.Errorf("only the requested advocate can respond: %w", ErrForbidden)
	}
	if in.PaymentAmount < 0 {
		return nil, invalid("paymentAmount cannot be negative")
	}
	if in.Accept {
		err = m.acceptRequest(ctx, actor, r, in)
	} else {
		err = m.rejectRequest(ctx, actor, r, in)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (m *Mutator) rejectRequest(ctx context.Context, actor Actor, r *models.CaseRequest, in RespondInput) error {
	now := m.now()
	if err := m.transitionRequest(ctx, r, lifecycle.RequestRejected, bson.M{
		"caseRequest.response":    in.Response,
		"caseRequest.respondedAt": dt(now),
	}); err != nil {
		return err
	}

	if r.Details.CaseID != nil {
		c, err := m.Case(ctx, *r.Details.CaseID)
		if err != nil {
			return err
		}
		err = m.transitionCase(ctx, c, lifecycle.CaseRejected, actor, in.Response, bson.M{"case.rejectedBy": actor.ID})
		if IsRejection(err) {
			// the request is still rejected; the case has moved on
			zap.S().Infow("case kept its status after request rejection",
				"caseId", c.ID.Hex(),
				"requestId", r.ID.Hex(),
				"reason", err.Error(),
			)
		} else if err != nil {
			return err
		}
		r.Details.CaseStatus = c.Details.Status
	}

	message := fmt.Sprintf("Your case request for %q was declined.", r.Details.CaseTitle)
	if in.Response != "" {
		message += " " + in.Response
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      models.NotificationCaseRequestRejected,
		Title:     "Case request declined",
		Message:   message,
		RequestID: ref(r.ID),
		CaseID:    r.Details.CaseID,
	}, r.Details.LitigantID)
	return nil
}

func (m *Mutator) acceptRequest(ctx context.Context, actor Actor, r *models.CaseRequest, in RespondInput) error {
	// validate the request side before anything is written
	paid := in.PaymentAmount > 0
	requestTo := lifecycle.RequestAccepted
	if paid {
		requestTo = lifecycle.RequestPaymentRequested
	}
	if err := lifecycle.ValidateRequest(r.Details.Status, requestTo); err != nil {
		return err
	}

	// a request without a case is claimed before one is filed, so a losing
	// concurrent accept never leaves a case behind
	var c *models.Case
	caseFrom := lifecycle.CasePendingApproval
	if r.Details.CaseID != nil {
		var err error
		if c, err = m.Case(ctx, *r.Details.CaseID); err != nil {
			return err
		}
		caseFrom = c.Details.Status
	}
	caseTo := acceptedCaseStatus(caseFrom, paid)
	if caseTo != caseFrom {
		if err := lifecycle.ValidateCase(caseFrom, caseTo); err != nil {
			return err
		}
	}

	now := m.now()
	requestSet := bson.M{
		"caseRequest.response":    in.Response,
		"caseRequest.respondedAt": dt(now),
		"caseRequest.caseStatus":  caseTo,
	}
	if c != nil {
		requestSet["caseRequest.caseId"] = c.ID
	}
	if paid {
		requestSet["caseRequest.paymentAmount"] = in.PaymentAmount
		requestSet["caseRequest.paymentStatus"] = models.PaymentPending
	}
	if err := m.transitionRequest(ctx, r, requestTo, requestSet); err != nil {
		return err
	}
	r.Details.CaseStatus = caseTo

	if c == nil {
		filed, err := m.fileCase(ctx, actor, r.Details.LitigantID, FileCaseInput{
			Title:       r.Details.CaseTitle,
			Description: r.Details.CaseDescription,
			CaseType:    r.Details.CaseType,
			Court:       r.Details.Court,
		})
		if err != nil {
			return fmt.Errorf("case request %s was accepted but no case could be filed: %w", r.ID.Hex(), err)
		}
		c = filed
		err = m.Requests.UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$set": bson.M{"caseRequest.caseId": c.ID}})
		if err != nil {
			return fmt.Errorf("failed to link case %s to case request %s: %w", c.ID.Hex(), r.ID.Hex(), err)
		}
		r.Details.CaseID = ref(c.ID)
	}

	setAccepted(&c.Details, actor.ID, now)
	caseSet := bson.M{"case.advocates": c.Details.Advocates}
	if paid {
		caseSet["case.paymentAmount"] = in.PaymentAmount
		caseSet["case.paymentStatus"] = models.PaymentPending
	}
	if err := m.moveCase(ctx, c, caseTo, actor, in.Response, caseSet); err != nil {
		return err
	}

	if paid {
		r.Details.PaymentAmount = in.PaymentAmount
		r.Details.PaymentStatus = models.PaymentPending
		m.notify(ctx, models.NotificationDetails{
			SenderID:         actor.ID,
			Type:             models.NotificationPayment,
			Title:            "Payment requested",
			Message:          fmt.Sprintf("Your advocate accepted the case %q and requested a payment of %.2f.", r.Details.CaseTitle, in.PaymentAmount),
			CaseID:           ref(c.ID),
			RequestID:        ref(r.ID),
			IsActionRequired: true,
			PaymentDetails: &models.PaymentDetails{
				Amount: in.PaymentAmount,
				Status: models.PaymentPending,
			},
		}, r.Details.LitigantID)
		return nil
	}

	m.notify(ctx, models.NotificationDetails{
		SenderID:  actor.ID,
		Type:      models.NotificationCaseRequestAccepted,
		Title:     "Case request accepted",
		Message:   fmt.Sprintf("Your advocate accepted the case %q.", r.Details.CaseTitle),
		CaseID:    ref(c.ID),
		RequestID: ref(r.ID),
	}, r.Details.LitigantID)
	return nil
}

// acceptedCaseStatus is where a case goes when an advocate accepts it. A
// case past approval only gains the advocate.
func acceptedCaseStatus(current lifecycle.CaseStatus, paid bool) lifecycle.CaseStatus {
	switch {
	case paid:
		return lifecycle.CasePaymentRequested
	case current == lifecycle.CasePendingApproval:
		return lifecycle.CaseApproved
	}
	return current
}

func setAccepted(c *models.CaseDetails, advocateID primitive.ObjectID, now time.Time) {
	for i := range c.Advocates {
		if c.Advocates[i].AdvocateID == advocateID {
			c.Advocates[i].Status = models.AdvocateAccepted
			return
		}
	}
	c.Advocates = append(c.Advocates, models.CaseAdvocate{
		AdvocateID: advocateID,
		Status:     models.AdvocateAccepted,
		AssignedAt: dt(now),
	})
}

// moveCase writes set on the case and transitions it when the status differs
func (m *Mutator) moveCase(ctx context.Context, c *models.Case, to lifecycle.CaseStatus, actor Actor, note string, set bson.M) error {
	if c.Details.Status != to {
		return m.transitionCase(ctx, c, to, actor, note, set)
	}
	fields := bson.M{"case.updatedAt": dt(m.now())}
	for k, v := range set {
		fields[k] = v
	}
	if err := m.Cases.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": fields}); err != nil {
		return fmt.Errorf("failed to update case %s: %w", c.ID.Hex(), err)
	}
	return nil
}

// CompletePayment settles the payment asked for on a request: the request
// is accepted, the case approved, the originating payment notification is
// promoted in place and the advocate is told the money arrived.
func (m *Mutator) CompletePayment(ctx context.Context, actor Actor, requestID primitive.ObjectID, in PaymentInput) (*models.CaseRequest, error) {
	r, err := m.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != r.Details.LitigantID {
		return nil, fmt.Errorf("only the litigant can pay for a case request: %w", ErrForbidden)
	}
	if r.Details.Status != lifecycle.RequestPaymentRequested {
		return nil, &lifecycle.Rejection{
			Entity: lifecycle.EntityCaseRequest,
			From:   string(r.Details.Status),
			To:     string(lifecycle.RequestAccepted),
			Reason: fmt.Sprintf("case request is %s and has no payment due", r.Details.Status),
		}
	}
	if r.Details.CaseID == nil {
		return nil, fmt.Errorf("case request %s has no case: %w", r.ID.Hex(), ErrConflict)
	}
	c, err := m.Case(ctx, *r.Details.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Details.Status.IsTerminal() {
		return nil, &lifecycle.Rejection{
			Entity: lifecycle.EntityCase,
			From:   string(c.Details.Status),
			To:     string(lifecycle.CaseApproved),
			Reason: fmt.Sprintf("case is %s and can no longer take a payment", c.Details.Status),
		}
	}
	caseTo := lifecycle.CaseApproved
	if c.Details.Status != lifecycle.CasePaymentRequested {
		// the case moved on (another advocate, or a hearing); keep its status
		caseTo = c.Details.Status
	}
	if caseTo != c.Details.Status {
		if err := lifecycle.ValidateCase(c.Details.Status, caseTo); err != nil {
			return nil, err
		}
	}

	now := m.now()
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = DefaultPaymentMethod
	}
	paid := models.PaymentDetails{
		Amount:    r.Details.PaymentAmount,
		Status:    models.PaymentCompleted,
		Method:    method,
		Reference: "PAY-" + strings.ToUpper(uuid.NewString()),
		PaidAt:    dt(now),
	}

	if err := m.transitionRequest(ctx, r, lifecycle.RequestAccepted, bson.M{
		"caseRequest.paymentStatus":    paid.Status,
		"caseRequest.paymentMethod":    paid.Method,
		"caseRequest.paymentReference": paid.Reference,
		"caseRequest.paymentDate":      paid.PaidAt,
		"caseRequest.caseStatus":       caseTo,
	}); err != nil {
		return nil, err
	}
	r.Details.PaymentStatus = paid.Status
	r.Details.PaymentMethod = paid.Method
	r.Details.PaymentReference = paid.Reference
	r.Details.PaymentDate = paid.PaidAt
	r.Details.CaseStatus = caseTo

	if err := m.moveCase(ctx, c, caseTo, actor, "payment completed", bson.M{
		"case.paymentAmount":    paid.Amount,
		"case.paymentStatus":    paid.Status,
		"case.paymentMethod":    paid.Method,
		"case.paymentReference": paid.Reference,
		"case.paymentDate":      paid.PaidAt,
	}); err != nil {
		return nil, err
	}

	if m.Notifier != nil {
		if err := m.Notifier.PromotePayment(ctx, r.ID, paid); err != nil {
			zap.S().Warnw("failed to promote payment notification", "requestId", r.ID.Hex(), "error", err)
		}
	}
	m.notify(ctx, models.NotificationDetails{
		SenderID:       actor.ID,
		Type:           models.NotificationPaymentReceived,
		Title:          "Payment received",
		Message:        fmt.Sprintf("The litigant paid %.2f for %q. Reference %s.", paid.Amount, r.Details.CaseTitle, paid.Reference),
		CaseID:         ref(c.ID),
		RequestID:      ref(r.ID),
		PaymentDetails: &paid,
	}, r.Details.AdvocateID)
	return r, nil
}
