package services

import (
	"fmt"
	"sync"

	"github.com/EduBridge-2025/advisory-service/internal/config"
	"gopkg.in/gomail.v2"
)

// EmailSender delivers a single notification email. Implementations must be
// safe for concurrent use.
type EmailSender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg *config.Config) EmailSender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.EmailFrom,
	}
}

func (s *smtpSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// MockEmailSender records sent emails for tests; FailWith makes every send
// fail with the given error.
type MockEmailSender struct {
	mu       sync.Mutex
	Sent     []MockEmail
	FailWith error
}

type MockEmail struct {
	To      string
	Subject string
	Body    string
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (m *MockEmailSender) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Sent = append(m.Sent, MockEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *MockEmailSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
