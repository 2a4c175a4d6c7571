package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Options controls the process-wide logger.
type Options struct {
	Writer    io.Writer // defaults to os.Stderr
	Level     string    // debug, info, warn, error
	JSON      bool
	AddSource bool
}

// ParseLevel maps a config string onto a slog level, falling back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the handler for opts: JSON for machines, tint for terminals.
func NewHandler(opts Options) slog.Handler {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := ParseLevel(opts.Level)
	if opts.JSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  opts.AddSource,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// Setup installs the logger as slog's default and routes the standard
// library log package through it.
func Setup(opts Options) *slog.Logger {
	logger := slog.New(NewHandler(opts))
	slog.SetDefault(logger)
	log.SetFlags(0)
	return logger
}

// Err wraps an error as a tint-aware attribute.
func Err(err error) slog.Attr {
	return tint.Err(err)
}
