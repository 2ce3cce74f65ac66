// Package gate admits or denies chapter consumption and new stories.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/domain"
	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	"github.com/kailas-cloud/taleforge/internal/domain/usage/budget"
	"github.com/kailas-cloud/taleforge/internal/logger"
	"github.com/kailas-cloud/taleforge/internal/metrics"
)

// Service is the quota gate. Every admission is one atomic store call.
type Service struct {
	store  Store
	policy domacc.Policy
	now    func() time.Time
	logger *zap.Logger
}

// New creates a gate service.
func New(store Store, policy domacc.Policy, logger *zap.Logger) *Service {
	return &Service{store: store, policy: policy.Caps(), now: time.Now, logger: logger}
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TryConsume admits amount chapter units against the daily limit.
// A denial is returned as an unsuccessful result, not as an error.
func (s *Service) TryConsume(ctx context.Context, accountID string, amount int64) (usage.ConsumeResult, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.ConsumeResult{}, err
	}
	if amount < 1 {
		return usage.ConsumeResult{}, domain.InvalidInput("amount must be at least 1, got %d", amount)
	}

	now := s.now().UTC()
	out, err := s.store.ConsumeUnits(ctx, domacc.ConsumeRequest{
		AccountID: accountID,
		Amount:    amount,
		Limits:    s.policy.DailyChapters,
		Now:       now,
		NextReset: period.NextDaily(now),
	})
	if err != nil {
		return usage.ConsumeResult{}, fmt.Errorf("consume chapters: %w", err)
	}

	b := budget.New(out.Used, s.policy.DailyChapters.LimitFor(out.Tier), out.ResetAt)
	metrics.QuotaDecisionsTotal.WithLabelValues(metrics.GateChapters, string(out.Tier), metrics.Decision(out.Admitted)).Inc()

	if !out.Admitted {
		logger.FromContext(ctx, s.logger).Info("Chapter quota denied",
			zap.String("account_id", accountID),
			zap.Int64("amount", amount),
			zap.Int64("used", out.Used),
			zap.Int64("limit", b.Limit()),
			zap.Time("reset_at", out.ResetAt),
		)
	}
	return usage.NewConsumeResult(out.Admitted, b), nil
}

// CheckActiveStoriesCap reports whether the account may start another story.
func (s *Service) CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.StoriesCap{}, err
	}

	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return usage.StoriesCap{}, fmt.Errorf("get account: %w", err)
	}
	return usage.NewStoriesCap(a.Tier, a.ActiveStories, s.policy.ActiveStories.LimitFor(a.Tier)), nil
}

// OpenStory registers a story entering a non-terminal status.
func (s *Service) OpenStory(ctx context.Context, accountID string) (usage.StoryResult, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.StoryResult{}, err
	}

	out, err := s.store.OpenStory(ctx, domacc.StoryRequest{AccountID: accountID, Limits: s.policy.ActiveStories})
	if err != nil {
		return usage.StoryResult{}, fmt.Errorf("open story: %w", err)
	}

	metrics.QuotaDecisionsTotal.WithLabelValues(metrics.GateStories, string(out.Tier), metrics.Decision(out.Admitted)).Inc()

	res := usage.StoryResult{
		Success: out.Admitted,
		Cap:     usage.NewStoriesCap(out.Tier, out.Active, s.policy.ActiveStories.LimitFor(out.Tier)),
	}
	if !out.Admitted {
		res.Error = usage.MsgActiveStoriesCapped
		logger.FromContext(ctx, s.logger).Info("Story cap denied",
			zap.String("account_id", accountID),
			zap.Int64("active", out.Active),
		)
	}
	return res, nil
}

// CloseStory releases a story that completed or was deleted.
func (s *Service) CloseStory(ctx context.Context, accountID string) (usage.StoriesCap, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.StoriesCap{}, err
	}

	if _, err := s.store.CloseStory(ctx, accountID); err != nil {
		return usage.StoriesCap{}, fmt.Errorf("close story: %w", err)
	}
	return s.CheckActiveStoriesCap(ctx, accountID)
}
