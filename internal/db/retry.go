package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is one attempt at a store call.
type Operation func(ctx context.Context) error

// Retryable decides whether a failed attempt may be repeated.
type Retryable func(err error) bool

const DefaultMaxRetries = 3

const duplicateKeyCode = 11000

// Try runs op with DefaultMaxRetries, repeating only on duplicate key errors.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries more times while the error
// is retryable. Backoff grows by 50ms per attempt and is cut short when ctx ends.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable Retryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}

		slog.Debug("retrying store operation", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries server code 11000.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == duplicateKeyCode {
		return true
	}
	return false
}
