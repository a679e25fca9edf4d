// Package mailer sends transactional email.
package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through an authenticated SMTP relay. Each call
// dials a fresh connection; the volume here is a few messages per
// appointment decision.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It stands in
// for SMTP when no relay is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "mailer").Logger()}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email not sent, SMTP disabled")
	return nil
}

// ---------------------------------------------------------------------------
// Mock sender (test double)
// ---------------------------------------------------------------------------

type EmailCall struct {
	To      string
	Subject string
	Body    string
}

type MockSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

func (m *MockSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return nil
}

func (m *MockSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
