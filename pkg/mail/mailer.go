package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
)

// ErrSMTPDisabled signals that outbound delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	// HTML is an optional alternative part sent alongside Body.
	HTML string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Provider names accepted by NewMailer.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
)

// Settings selects and configures a delivery provider.
type Settings struct {
	Provider string
	SMTP     SMTPSettings
	SendGrid SendGridSettings
}

// NewMailer builds the mailer for the configured provider, defaulting to SMTP.
func NewMailer(cfg Settings) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderSMTP:
		return NewSMTPMailer(cfg.SMTP)
	case ProviderSendGrid:
		return NewSendGridMailer(cfg.SendGrid)
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", cfg.Provider)
	}
}

// prepare normalises recipients and resolves the sender, validating every address.
func prepare(msg Message, defaultFrom string) (string, []string, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return "", nil, errors.New("mail: at least one recipient is required")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = strings.TrimSpace(defaultFrom)
	}
	if from == "" {
		return "", nil, errors.New("mail: sender address is required")
	}

	if err := checkmail.ValidateFormat(from); err != nil {
		return "", nil, fmt.Errorf("mail: invalid from address: %w", err)
	}

	for _, rcpt := range recipients {
		if err := checkmail.ValidateFormat(rcpt); err != nil {
			return "", nil, fmt.Errorf("mail: invalid recipient address %q: %w", rcpt, err)
		}
	}

	return from, recipients, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
