package credits

import (
	"context"
	"time"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
)

// Store is the persistence contract for credit balances.
type Store interface {
	Get(ctx context.Context, id string) (domacc.Account, error)
	DebitCredits(ctx context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error)
	GrantCredits(ctx context.Context, req domacc.GrantRequest) (int64, error)
}

// Ledger records credits spent for reporting. Optional.
type Ledger interface {
	Record(ctx context.Context, accountID string, credits int64, now time.Time) error
	Spent(ctx context.Context, accountID string, now time.Time) (usage.Spent, error)
}
