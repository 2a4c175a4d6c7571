package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cimars/catalog/internal/cache"
	"cimars/catalog/internal/config"
)

// MockEmailTTL bounds how long a captured message stays readable.
const MockEmailTTL = 5 * time.Minute

// ErrNoMockEmail is returned by ReadMockEmail when nothing was captured.
var ErrNoMockEmail = errors.New("no mock email stored")

// MockEmail is what RedisSender stores for each captured message.
type MockEmail struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
	Body     string `json:"body"`
	SentAt   string `json:"sentAt"`
}

// MockEmailKey is the Redis key of the last message sent to a recipient
// with the given template.
func MockEmailKey(to, template string) string {
	if template == "" {
		template = "unknown"
	}
	return cache.Key("mockemail", strings.ToLower(to), template)
}

// RedisSender captures mail in Redis instead of delivering it. Used when
// MOCK_SERVICES is enabled so integration runs can read mail back.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	template := templateOf(rawMessage)
	data, err := json.Marshal(MockEmail{
		To:       strings.Join(to, ", "),
		From:     s.cfg.SmtpFromAddress,
		Subject:  subject,
		Template: template,
		Body:     string(rawMessage),
		SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, recipient := range to {
		pipe.Set(ctx, MockEmailKey(recipient, template), data, MockEmailTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store mock email for %v: %w", to, err)
	}

	slog.Info("mock email stored in Redis", "to", to, "template", template, "subject", subject)
	return nil
}

// ReadMockEmail returns the message captured for a recipient and template.
func ReadMockEmail(ctx context.Context, client *redis.Client, to, template string) (*MockEmail, error) {
	raw, err := client.Get(ctx, MockEmailKey(to, template)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMockEmail
	}
	if err != nil {
		return nil, fmt.Errorf("reading mock email: %w", err)
	}

	var msg MockEmail
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decoding mock email: %w", err)
	}
	return &msg, nil
}
