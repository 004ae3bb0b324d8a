package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client   sendgridClient
	fromName string
	from     string
}

func NewSendGridSender(apiKey, from, fromName string) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key not configured")
	}
	if from == "" {
		return nil, errors.New("sendgrid from address not configured")
	}
	if fromName == "" {
		fromName = "Appointments"
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from, fromName: fromName}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
