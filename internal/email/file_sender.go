package email

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEmailSender appends every message to a local log file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
}

func NewFileEmailSender(filePath string) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	header := fmt.Sprintf("=== %s template=%s to=%s ===\n",
		time.Now().UTC().Format(time.RFC3339), templateOf(rawMessage), strings.Join(to, ","))
	if _, err := file.WriteString(header + string(rawMessage) + "\n"); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}

	slog.Debug("email logged to file", "to", to, "subject", subject, "path", s.filePath)
	return nil
}
