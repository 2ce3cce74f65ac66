package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaDenied signals that the per-period limit or an account cap is reached.
	ErrQuotaDenied = errors.New("quota denied")
	// ErrInsufficientCredits signals a credit balance below the operation cost.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidInput signals a malformed account ID, amount or tier.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable signals a persistence failure (timeout, connection refused).
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// QuotaDeniedError wraps ErrQuotaDenied with the instant the period rolls over.
type QuotaDeniedError struct {
	Reason          string
	ResetAt         time.Time
	HoursUntilReset int
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("%s: %s, resets in %d hours", ErrQuotaDenied.Error(), e.Reason, e.HoursUntilReset)
}

func (e *QuotaDeniedError) Unwrap() error { return ErrQuotaDenied }

// NewQuotaDenied creates a quota denial error.
func NewQuotaDenied(reason string, resetAt time.Time, hours int) error {
	return &QuotaDeniedError{Reason: reason, ResetAt: resetAt, HoursUntilReset: hours}
}

// InvalidInput wraps ErrInvalidInput with a field-level message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// IsRetryable reports whether the caller may retry the failed call with backoff.
// Quota denials are terminal for the period and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrQuotaDenied)
}
