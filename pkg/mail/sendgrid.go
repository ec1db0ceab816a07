package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSettings configure delivery through the SendGrid v3 API.
type SendGridSettings struct {
	Enabled  bool
	APIKey   string
	From     string
	FromName string
}

type sendGridSendFunc func(ctx context.Context, apiKey string, message *sgmail.SGMailV3) (int, string, error)

type sendGridMailer struct {
	cfg    SendGridSettings
	sendFn sendGridSendFunc
}

// NewSendGridMailer validates cfg and returns a SendGrid backed Mailer.
func NewSendGridMailer(cfg SendGridSettings) (Mailer, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mail: sendgrid api key is required when enabled")
	}
	return &sendGridMailer{cfg: cfg, sendFn: sendGridSend}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	from, recipients, err := prepare(msg, m.cfg.From)
	if err != nil {
		return err
	}

	status, body, err := m.sendFn(ctx, m.cfg.APIKey, buildSendGridMessage(from, m.cfg.FromName, recipients, msg))
	if err != nil {
		return fmt.Errorf("mail: sendgrid send: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("mail: sendgrid rejected message: status %d: %s", status, body)
	}
	return nil
}

func buildSendGridMessage(from, fromName string, recipients []string, msg Message) *sgmail.SGMailV3 {
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(fromName, from))
	message.Subject = escapeHeader(msg.Subject)

	personalization := sgmail.NewPersonalization()
	for _, rcpt := range recipients {
		personalization.AddTos(sgmail.NewEmail("", rcpt))
	}
	message.AddPersonalizations(personalization)

	message.AddContent(sgmail.NewContent("text/plain", msg.Body))
	if strings.TrimSpace(msg.HTML) != "" {
		message.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return message
}

func sendGridSend(ctx context.Context, apiKey string, message *sgmail.SGMailV3) (int, string, error) {
	client := sendgrid.NewSendClient(apiKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, resp.Body, nil
}
