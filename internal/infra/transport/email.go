package transport

import (
	"context"
	"fmt"
	"strings"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"

	"gopkg.in/gomail.v2"
)

// EmailConfig configures the SMTP email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender delivers messages over SMTP.
type EmailSender struct {
	config EmailConfig
	dialer *gomail.Dialer
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	return &EmailSender{
		config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, contact alert.Contact, msg dispatch.Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", contact.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", strings.ReplaceAll(msg.Body, "\n", "<br>"))

	// gomail has no context support; run the dial+send in a goroutine so the
	// caller's deadline still bounds the attempt.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", contact.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email send aborted: %w", ctx.Err())
	}
}
