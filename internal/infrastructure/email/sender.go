// Package email delivers outgoing mail for the auth service.
//
// SMTPSender talks to a real relay through gomail. LogSender is the
// development stand-in: it writes the message to the log, which is how a
// developer picks up a password reset link locally.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/urielparavi/natours-auth/internal/infrastructure/config"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("email: no recipient specified")

// SMTPSender sends plain-text mail through an SMTP relay.
type SMTPSender struct {
	from string
	dial func() (gomail.SendCloser, error)
}

// NewSMTPSender builds a sender from the email config section.
//
// No connection is made here. Each Send dials the relay, delivers one
// message and hangs up, so a relay restart never leaves a stale session.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPSender{
		from: cfg.From,
		dial: dialer.Dial,
	}
}

// Send delivers one plain-text message.
//
// The SMTP exchange runs in its own goroutine so a stalled relay cannot
// outlive ctx.
//
// Returns:
//   - nil: The relay accepted the message
//   - ErrNoRecipient: to is empty
//   - error wrapping ctx.Err(): ctx ended first; the exchange is abandoned
//   - any other error: Dial or send failure from the relay
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.deliver(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sending email: %w", ctx.Err())
	}
}

func (s *SMTPSender) deliver(msg *gomail.Message) error {
	conn, err := s.dial()
	if err != nil {
		return fmt.Errorf("dialing smtp relay: %w", err)
	}
	defer conn.Close() //nolint:errcheck // best effort QUIT

	if err := gomail.Send(conn, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// LogSender writes messages to the logger instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message at info level. The body is logged verbatim
// because it is the only way to reach a reset link in development.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	s.logger.InfoContext(ctx, "email not sent (delivery disabled)",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
