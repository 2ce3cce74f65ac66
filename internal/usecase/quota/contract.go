package quota

import (
	"context"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
)

// AccountStore is the full persistence contract. Every driver in
// repository/account implements it.
type AccountStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (domacc.Account, error)
	ConsumeUnits(ctx context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error)
	DebitCredits(ctx context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error)
	GrantCredits(ctx context.Context, req domacc.GrantRequest) (int64, error)
	OpenStory(ctx context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error)
	CloseStory(ctx context.Context, id string) (int64, error)
	SetTier(ctx context.Context, id string, tier domacc.Tier) error
}

// Gate admits chapter consumption and new stories.
type Gate interface {
	TryConsume(ctx context.Context, accountID string, amount int64) (usage.ConsumeResult, error)
	CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error)
	OpenStory(ctx context.Context, accountID string) (usage.StoryResult, error)
	CloseStory(ctx context.Context, accountID string) (usage.StoriesCap, error)
}

// Credits debits and grants credit balances.
type Credits interface {
	Charge(ctx context.Context, accountID string, op cost.Operation, text string) (usage.CreditResult, error)
	Balance(ctx context.Context, accountID string) (usage.CreditBalance, error)
	Grant(ctx context.Context, accountID string, credits int64) (int64, error)
}
