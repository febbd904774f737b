// Package notify persists notifications for case and hearing events and
// guards time-triggered hearing reminders against repeats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/models"
	templates "github.com/linesmerrill/court-case-portal/templates/html"
)

// Errors returned by the read surface
var (
	ErrNotFound  = errors.New("notification not found")
	ErrForbidden = errors.New("notification belongs to another user")
)

// Reminder titles
const (
	TitleUpcoming = "Hearing starting soon"
	TitleStarted  = "Hearing has started"
)

// Dispatcher writes one notification per recipient. Writes are independent:
// a failed insert is logged and the others still go through.
type Dispatcher struct {
	DB      databases.NotificationDatabase
	Users   databases.UserDatabase
	Mailer  Mailer
	Guard   *ReminderGuard
	BaseURL string
	Now     func() time.Time
}

// NewDispatcher returns a Dispatcher with a reminder guard of the given window
func NewDispatcher(db databases.NotificationDatabase, users databases.UserDatabase, window time.Duration) *Dispatcher {
	return &Dispatcher{
		DB:    db,
		Users: users,
		Guard: NewReminderGuard(window, nil),
		Now:   time.Now,
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

// Notify stores msg once for every distinct recipient and returns how many
// were written
func (d *Dispatcher) Notify(ctx context.Context, msg models.NotificationDetails, recipients ...primitive.ObjectID) int {
	var (
		g       errgroup.Group
		written int64
	)
	createdAt := primitive.NewDateTimeFromTime(d.now())
	for _, id := range unique(recipients) {
		details := msg
		details.RecipientID = id
		details.IsRead = false
		details.CreatedAt = createdAt
		g.Go(func() error {
			n := models.Notification{ID: primitive.NewObjectID(), Details: details}
			if _, err := d.DB.InsertOne(ctx, n); err != nil {
				zap.S().Errorw("failed to create notification",
					"type", details.Type,
					"recipientId", details.RecipientID.Hex(),
					"error", err,
				)
				return nil
			}
			atomic.AddInt64(&written, 1)
			return nil
		})
	}
	_ = g.Wait()
	return int(atomic.LoadInt64(&written))
}

func unique(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Remind sends the upcoming or started reminder for a hearing to the case
// participants. It returns false without writing anything when the hearing
// was already reminded inside the dedup window.
func (d *Dispatcher) Remind(ctx context.Context, h *models.Hearing, c *models.Case, started bool) (int, bool) {
	if d.Guard != nil && !d.Guard.Allow(h.ID.Hex()) {
		return 0, false
	}

	start := h.Details.Start()
	title := TitleUpcoming
	message := fmt.Sprintf("The %s hearing for case %s (%s) starts at %s, %s.",
		h.Details.Type, c.Details.CaseNumber, c.Details.Title, start.Format("15:04 MST"), h.Details.Location)
	if started {
		title = TitleStarted
		message = fmt.Sprintf("The %s hearing for case %s (%s) started at %s, %s.",
			h.Details.Type, c.Details.CaseNumber, c.Details.Title, start.Format("15:04 MST"), h.Details.Location)
	}
	caseID, hearingID := c.ID, h.ID
	recipients := c.Details.Participants()
	n := d.Notify(ctx, models.NotificationDetails{
		Type:      models.NotificationHearingReminder,
		Title:     title,
		Message:   message,
		CaseID:    &caseID,
		HearingID: &hearingID,
	}, recipients...)

	d.email(ctx, recipients, title, message, d.hearingLink(h.ID))
	return n, true
}

func (d *Dispatcher) hearingLink(id primitive.ObjectID) string {
	if d.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(d.BaseURL, "/") + "/hearings/" + id.Hex()
}

// email is best effort; the stored notification is what counts
func (d *Dispatcher) email(ctx context.Context, recipients []primitive.ObjectID, subject, plain, link string) {
	if d.Mailer == nil || d.Users == nil {
		return
	}
	html := templates.RenderHearingReminder(subject, plain, link)
	for _, id := range unique(recipients) {
		u, err := d.Users.FindOne(ctx, bson.M{"_id": id})
		if err != nil {
			zap.S().Warnw("no user to email reminder to", "userId", id.Hex(), "error", err)
			continue
		}
		if u.Details.Email == "" {
			continue
		}
		if err := d.Mailer.Send(ctx, u.Details.DisplayName(), u.Details.Email, subject, plain, html); err != nil {
			zap.S().Warnw("failed to email hearing reminder", "userId", id.Hex(), "error", err)
		}
	}
}

// PromotePayment rewrites the payment notification raised for a case request
// into a payment-completed notification, in place
func (d *Dispatcher) PromotePayment(ctx context.Context, requestID primitive.ObjectID, paid models.PaymentDetails) error {
	err := d.DB.UpdateOne(ctx,
		bson.M{
			"notification.requestId": requestID,
			"notification.type":      models.NotificationPayment,
		},
		bson.M{"$set": bson.M{
			"notification.type":             models.NotificationPaymentCompleted,
			"notification.title":            "Payment completed",
			"notification.message":          fmt.Sprintf("Payment of %.2f was completed. Reference %s.", paid.Amount, paid.Reference),
			"notification.isActionRequired": false,
			"notification.paymentDetails":   paid,
		}},
	)
	if errors.Is(err, databases.ErrNoMatch) {
		return fmt.Errorf("payment notification for request %s: %w", requestID.Hex(), ErrNotFound)
	}
	return err
}

// ForRecipient returns a page of the user's notifications, newest first
func (d *Dispatcher) ForRecipient(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool, limit, page int) ([]models.Notification, error) {
	list, err := d.DB.FindForRecipient(ctx, recipientID, unreadOnly, limit, page)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

// MarkRead marks a notification read. Only its recipient may do so.
func (d *Dispatcher) MarkRead(ctx context.Context, recipientID, notificationID primitive.ObjectID) (*models.Notification, error) {
	n, err := d.DB.FindOne(ctx, bson.M{"_id": notificationID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("notification %s: %w", notificationID.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if n.Details.RecipientID != recipientID {
		return nil, ErrForbidden
	}
	if n.Details.IsRead {
		return n, nil
	}

	readAt := primitive.NewDateTimeFromTime(d.now())
	err = d.DB.UpdateOne(ctx,
		bson.M{"_id": notificationID},
		bson.M{"$set": bson.M{"notification.isRead": true, "notification.readAt": readAt}},
	)
	if err != nil {
		return nil, err
	}
	n.Details.IsRead = true
	n.Details.ReadAt = readAt
	return n, nil
}
