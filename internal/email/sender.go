package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/redis/go-redis/v9"

	"cimars/catalog/internal/config"
)

// Sender delivers a fully composed message (see Compose).
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// NewSenderFromConfig builds the delivery chain: the Redis mock when
// MOCK_SERVICES is on, SMTP when a host is configured, logging otherwise,
// plus a file log when LOG_EMAILS is set.
func NewSenderFromConfig(cfg *config.Config, rdb *redis.Client) Sender {
	var primary Sender
	if cfg.MockServices && rdb != nil {
		slog.Info("MOCK_SERVICES enabled, storing outgoing mail in Redis")
		primary = NewRedisSender(rdb, cfg)
	} else {
		primary = NewSMTPSender(cfg)
	}

	composite := NewCompositeEmailSender(primary)
	if cfg.LogEmailsPath != "" {
		fileSender, err := NewFileEmailSender(cfg.LogEmailsPath)
		if err != nil {
			slog.Warn("file email logger disabled", "path", cfg.LogEmailsPath, "error", err)
		} else {
			composite.AddSender(fileSender)
			slog.Info("logging outgoing mail to file", "path", cfg.LogEmailsPath)
		}
	}
	return composite
}

// SMTPSender implements Sender using net/smtp.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSMTPSender returns a LoggingSender when no SMTP host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		slog.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}

	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}
	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error sending %q to %v: %w", subject, to, err)
	}
	slog.Info("email sent via SMTP", "to", to, "subject", subject)
	return nil
}

// LoggingSender writes mail to the log instead of delivering it.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	slog.Info("email (logged, not sent)",
		"from", s.from,
		"to", to,
		"subject", subject,
		"template", templateOf(rawMessage),
		"raw", string(rawMessage),
	)
	return nil
}
