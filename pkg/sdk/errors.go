package taleforge

import "github.com/kailas-cloud/taleforge/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrQuotaDenied         = domain.ErrQuotaDenied
	ErrInsufficientCredits = domain.ErrInsufficientCredits
	ErrInvalidInput        = domain.ErrInvalidInput
	ErrStoreUnavailable    = domain.ErrStoreUnavailable
)

// QuotaDeniedError carries the reset instant of a denied RequireChapters call.
// Use errors.As() to extract it.
type QuotaDeniedError = domain.QuotaDeniedError

// IsRetryable reports whether the failed call may be retried with backoff.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }
