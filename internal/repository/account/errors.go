package account

import (
	"fmt"

	"github.com/kailas-cloud/taleforge/internal/domain"
)

// storeErr marks a persistence failure as retryable infrastructure trouble.
func storeErr(op, id string, err error) error {
	if id == "" {
		return fmt.Errorf("account %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("account %s %s: %w: %w", op, id, domain.ErrStoreUnavailable, err)
}
