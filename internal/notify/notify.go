package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"fame/internal/config"

	"go.uber.org/zap"
)

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages. Callers treat delivery as best-effort.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipients is returned for a message without valid recipients.
var ErrNoRecipients = errors.New("message has no recipients")

// New builds the Sender selected by cfg.MailDriver.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Sender, error) {
	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.MailServer,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
			UseTLS:   cfg.UseTLS(),
		}), nil
	case config.MailDriverSES:
		return NewSESSender(ctx, cfg.AWSRegion, cfg.MailFrom)
	case config.MailDriverLog, "":
		return NewLogSender(logger), nil
	}
	return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
}

// Recipients validates and de-duplicates addresses, keeping their order.
func Recipients(addrs []string) ([]string, error) {
	seen := make(map[string]bool, len(addrs))
	var out []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("invalid email address %q: %w", a, err)
		}
		seen[a] = true
		out = append(out, parsed.Address)
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	to, err := Recipients(msg.To)
	if err != nil {
		return err
	}
	s.logger.Info("email not sent, mail driver is log",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.Int("body_chars", len(msg.Body)))
	return nil
}
