package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
	})
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("expected host validation error, got %v", err)
	}

	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("expected disabled configuration to succeed: %v", err)
	}

	if mailer == nil {
		t.Fatal("expected mailer to be returned")
	}
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"test@example.com"},
		Subject: "Test",
		Body:    "Hello",
	})
	if !errors.Is(err, ErrSMTPDisabled) {
		t.Fatalf("expected ErrSMTPDisabled, got %v", err)
	}
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	sm, ok := mailer.(*smtpMailer)
	if !ok {
		t.Fatalf("expected smtpMailer type")
	}
	if sm.cfg.Timeout != 10*time.Second {
		t.Fatalf("expected timeout to be 10s, got %v", sm.cfg.Timeout)
	}
}

func TestSMTPMailerSendBuildsMessage(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	var captured *gomail.Message
	sm := mailer.(*smtpMailer)
	sm.sendFn = func(cfg SMTPSettings, m *gomail.Message) error {
		captured = m
		return nil
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"new@example.com", " new@example.com "},
		Subject: "Invitation\r\nBcc: spam@example.com",
		Body:    "Join us",
		HTML:    "<p>Join us</p>",
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if captured == nil {
		t.Fatal("expected message to be handed to the dialer")
	}

	if got := captured.GetHeader("From"); len(got) != 1 || got[0] != "no-reply@example.com" {
		t.Fatalf("unexpected from header: %v", got)
	}
	if got := captured.GetHeader("To"); len(got) != 1 || got[0] != "new@example.com" {
		t.Fatalf("expected deduplicated recipient, got %v", got)
	}
	if got := captured.GetHeader("Subject"); len(got) != 1 || strings.ContainsAny(got[0], "\r\n") {
		t.Fatalf("expected sanitised subject, got %v", got)
	}
}

func TestSMTPMailerSendRequiresRecipients(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"   ", "\t"},
		Subject: "No recipients",
		Body:    "Body",
	})
	if err == nil || !strings.Contains(err.Error(), "at least one recipient") {
		t.Fatalf("expected missing recipient error, got %v", err)
	}
}

func TestSMTPMailerSendValidatesAddresses(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		From: "invalid-from",
		To:   []string{"user@example.com"},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid from address") {
		t.Fatalf("expected invalid from error, got %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		From: "no-reply@example.com",
		To:   []string{"user@example.com", "bad-address"},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid recipient address") {
		t.Fatalf("expected invalid recipient error, got %v", err)
	}
}

func TestSendGridMailer(t *testing.T) {
	if _, err := NewSendGridMailer(SendGridSettings{Enabled: true}); err == nil {
		t.Fatal("expected missing api key to be rejected")
	}

	mailer, err := NewSendGridMailer(SendGridSettings{
		Enabled:  true,
		APIKey:   "SG.test",
		From:     "hello@ecohubkosova.org",
		FromName: "ECO HUB KOSOVA",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	var captured *sgmail.SGMailV3
	sg := mailer.(*sendGridMailer)
	sg.sendFn = func(_ context.Context, apiKey string, message *sgmail.SGMailV3) (int, string, error) {
		if apiKey != "SG.test" {
			t.Fatalf("unexpected api key %q", apiKey)
		}
		captured = message
		return 202, "", nil
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"new@example.com"},
		Subject: "Invitation",
		Body:    "Join us",
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if captured == nil || captured.From.Address != "hello@ecohubkosova.org" {
		t.Fatalf("unexpected sender: %+v", captured)
	}
	if len(captured.Personalizations) != 1 || captured.Personalizations[0].To[0].Address != "new@example.com" {
		t.Fatal("expected a single personalization for the recipient")
	}

	sg.sendFn = func(context.Context, string, *sgmail.SGMailV3) (int, string, error) {
		return 401, "unauthorized", nil
	}
	err = mailer.Send(context.Background(), Message{To: []string{"new@example.com"}})
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected rejected status error, got %v", err)
	}
}

func TestNewMailerProviders(t *testing.T) {
	if _, err := NewMailer(Settings{Provider: "pigeon"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}

	mailer, err := NewMailer(Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mailer.(*smtpMailer); !ok {
		t.Fatalf("expected smtp mailer by default, got %T", mailer)
	}

	mailer, err = NewMailer(Settings{Provider: "SendGrid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mailer.(*sendGridMailer); !ok {
		t.Fatalf("expected sendgrid mailer, got %T", mailer)
	}
}

func TestUniqueAddresses(t *testing.T) {
	addresses := []string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"}
	result := uniqueAddresses(addresses)
	if len(result) != 2 {
		t.Fatalf("expected 2 unique addresses, got %d: %v", len(result), result)
	}
	if result[0] != "alice@example.com" || result[1] != "bob@example.com" {
		t.Fatalf("unexpected result order/content: %v", result)
	}
}
