package report

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/voxlink/vox-capture-service/internal/config"
)

// SMTPMailer delivers reports over SMTP with implicit TLS, the way
// consumer providers such as Gmail expect on port 465
type SMTPMailer struct {
	config config.EmailConfig
}

// NewSMTPMailer creates a mailer from the email configuration. A
// disabled configuration yields no mailer, which callers treat as
// delivery switched off.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Sender == "" || cfg.Receiver == "" {
		return nil, fmt.Errorf("sender and receiver must be set when email is enabled")
	}
	return &SMTPMailer{config: cfg}, nil
}

// Send delivers one report message with the given attachments
func (m *SMTPMailer) Send(subject, body string, attachments []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.Sender)
	msg.SetHeader("To", m.config.Receiver)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, path := range attachments {
		msg.Attach(path)
	}

	dialer := gomail.NewDialer(m.config.SMTPHost, m.config.SMTPPort, m.config.Sender, m.config.Password)
	dialer.SSL = m.config.SMTPPort == 465

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to deliver report email: %w", err)
	}
	return nil
}
