package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends a single e-mail
type Mailer interface {
	Send(ctx context.Context, toName, toAddress, subject, plain, html string) error
}

// SendgridMailer sends mail through the SendGrid v3 API
type SendgridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

// NewSendgridMailer returns a mailer for the given API key, or nil when the
// key is empty so that e-mail is simply switched off
func NewSendgridMailer(apiKey, fromName, fromAddress string) *SendgridMailer {
	if apiKey == "" {
		return nil
	}
	return &SendgridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddress,
	}
}

// Send delivers one message
func (s *SendgridMailer) Send(ctx context.Context, toName, toAddress, subject, plain, html string) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(toName, toAddress)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toAddress)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}
