package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// UseTLS selects implicit TLS (SMTPS). When false, STARTTLS is negotiated if offered.
	UseTLS  bool
	Timeout time.Duration
}

type smtpSendFunc func(cfg SMTPSettings, m *gomail.Message) error

type smtpMailer struct {
	cfg    SMTPSettings
	sendFn smtpSendFunc
}

// NewSMTPMailer validates cfg and returns a gomail backed Mailer.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if err := validateSMTPConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{
		cfg:    cfg,
		sendFn: dialAndSend,
	}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	from, recipients, err := prepare(msg, m.cfg.From)
	if err != nil {
		return err
	}

	return m.sendFn(m.cfg, buildMessage(from, recipients, msg))
}

func buildMessage(from string, recipients []string, msg Message) *gomail.Message {
	message := gomail.NewMessage()
	message.SetHeader("From", from)
	message.SetHeader("To", recipients...)
	message.SetHeader("Subject", escapeHeader(msg.Subject))
	message.SetBody("text/plain", msg.Body)
	if strings.TrimSpace(msg.HTML) != "" {
		message.AddAlternative("text/html", msg.HTML)
	}
	return message
}

func dialAndSend(cfg SMTPSettings, m *gomail.Message) error {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseTLS
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: smtp send via %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return nil
}

func validateSMTPConfig(cfg SMTPSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New("mail: smtp host is required when enabled")
	}
	if cfg.Port == 0 {
		return errors.New("mail: smtp port is required when enabled")
	}
	return nil
}
