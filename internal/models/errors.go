package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("listing not found")
	ErrInvalidIdentifier       = errors.New("invalid listing identifier")
	ErrInvalidPage             = errors.New("page must be a positive integer")
	ErrInvalidLimit            = errors.New("limit must be a positive integer")
	ErrUnmappedVariant         = errors.New("construction type has no code mapping")
	ErrCounterStoreUnavailable = errors.New("counter store unavailable")
)

// ValidationError reports a single field that failed a domain constraint.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
