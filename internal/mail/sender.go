// Package mail sends outreach email over SMTP.
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers rendered outreach messages to a lead's mailbox.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender is a Sender backed by a plain SMTP account.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// NewSMTPSender constructs an SMTPSender. From falls back to User when empty.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	if from == "" {
		from = user
	}
	return &SMTPSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

// Send delivers a single plain-text message.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
