package chi

import (
	"context"
	"time"

	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	healthuc "github.com/kailas-cloud/taleforge/internal/usecase/health"
)

// QuotaService is the facade the handlers call.
type QuotaService interface {
	Now() time.Time
	GetStatus(ctx context.Context, accountID string) (usage.Status, error)
	UseOneChapter(ctx context.Context, accountID string) (usage.ConsumeResult, error)
	TryConsume(ctx context.Context, accountID string, amount int64) (usage.ConsumeResult, error)
	CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error)
	OpenStory(ctx context.Context, accountID string) (usage.StoryResult, error)
	CloseStory(ctx context.Context, accountID string) (usage.StoriesCap, error)
	ChargeCredits(ctx context.Context, accountID string, op cost.Operation, text string) (usage.CreditResult, error)
	CreditBalance(ctx context.Context, accountID string) (usage.CreditBalance, error)
	GrantCredits(ctx context.Context, accountID string, credits int64) (int64, error)
	SetTier(ctx context.Context, accountID, tier string) (usage.Status, error)
	CalculateAudioCost(text string) cost.AudioCost
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
