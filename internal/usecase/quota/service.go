// Package quota is the facade the transport and the CLI call.
// It composes the gate, the credits service, the cost calculator and the
// period math behind one API.
package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	"github.com/kailas-cloud/taleforge/internal/domain/usage/budget"
	"github.com/kailas-cloud/taleforge/internal/logger"
)

// Service is the quota facade.
type Service struct {
	store   AccountStore
	gate    Gate
	credits Credits
	policy  domacc.Policy
	now     func() time.Time
	logger  *zap.Logger
}

// New creates the facade.
func New(store AccountStore, gate Gate, credits Credits, policy domacc.Policy, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		gate:    gate,
		credits: credits,
		policy:  policy,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the wall clock used by read-only views.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

// GetStatus returns the daily chapter quota as of now. Read-only: a pending
// rollover is reflected in the view but not written.
func (s *Service) GetStatus(ctx context.Context, accountID string) (usage.Status, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.Status{}, err
	}

	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return usage.Status{}, fmt.Errorf("get status: %w", err)
	}

	now := s.Now()
	eff := a.Effective(now, s.policy)
	resetAt := eff.DailyResetAt
	if resetAt.IsZero() {
		resetAt = period.NextDaily(now)
	}

	return usage.Status{
		AccountID: accountID,
		Tier:      eff.Tier,
		Chapters:  budget.New(eff.DailyUsed, s.policy.DailyChapters.LimitFor(eff.Tier), resetAt),
	}, nil
}

// UseOneChapter consumes a single chapter unit.
func (s *Service) UseOneChapter(ctx context.Context, accountID string) (usage.ConsumeResult, error) {
	return s.TryConsume(ctx, accountID, 1)
}

// TryConsume consumes amount chapter units. Consumed units are never refunded.
func (s *Service) TryConsume(ctx context.Context, accountID string, amount int64) (usage.ConsumeResult, error) {
	res, err := s.gate.TryConsume(ctx, accountID, amount)
	if err != nil {
		return usage.ConsumeResult{}, fmt.Errorf("try consume: %w", err)
	}
	return res, nil
}

// RequireChapters is TryConsume for callers that want a denial as an error.
// It returns a *domain.QuotaDeniedError when the daily limit is reached.
func (s *Service) RequireChapters(ctx context.Context, accountID string, amount int64) error {
	res, err := s.TryConsume(ctx, accountID, amount)
	if err != nil {
		return err
	}
	return res.Err(s.Now())
}

// CheckActiveStoriesCap reports whether the account may start another story.
func (s *Service) CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error) {
	c, err := s.gate.CheckActiveStoriesCap(ctx, accountID)
	if err != nil {
		return usage.StoriesCap{}, fmt.Errorf("check stories cap: %w", err)
	}
	return c, nil
}

// OpenStory registers a new active story if the cap allows it.
func (s *Service) OpenStory(ctx context.Context, accountID string) (usage.StoryResult, error) {
	res, err := s.gate.OpenStory(ctx, accountID)
	if err != nil {
		return usage.StoryResult{}, fmt.Errorf("open story: %w", err)
	}
	return res, nil
}

// CloseStory releases an active story.
func (s *Service) CloseStory(ctx context.Context, accountID string) (usage.StoriesCap, error) {
	c, err := s.gate.CloseStory(ctx, accountID)
	if err != nil {
		return usage.StoriesCap{}, fmt.Errorf("close story: %w", err)
	}
	return c, nil
}

// ChargeCredits debits the price of op.
func (s *Service) ChargeCredits(ctx context.Context, accountID string, op cost.Operation, text string) (usage.CreditResult, error) {
	res, err := s.credits.Charge(ctx, accountID, op, text)
	if err != nil {
		return usage.CreditResult{}, fmt.Errorf("charge credits: %w", err)
	}
	return res, nil
}

// CreditBalance returns the effective credit balance.
func (s *Service) CreditBalance(ctx context.Context, accountID string) (usage.CreditBalance, error) {
	b, err := s.credits.Balance(ctx, accountID)
	if err != nil {
		return usage.CreditBalance{}, fmt.Errorf("credit balance: %w", err)
	}
	return b, nil
}

// GrantCredits adds credits and returns the new balance.
func (s *Service) GrantCredits(ctx context.Context, accountID string, credits int64) (int64, error) {
	b, err := s.credits.Grant(ctx, accountID, credits)
	if err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	return b, nil
}

// SetTier records the tier from the subscription source of truth.
func (s *Service) SetTier(ctx context.Context, accountID, tier string) (usage.Status, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.Status{}, err
	}
	t, err := domacc.ParseTier(tier)
	if err != nil {
		return usage.Status{}, err
	}

	if err := s.store.SetTier(ctx, accountID, t); err != nil {
		return usage.Status{}, fmt.Errorf("set tier: %w", err)
	}
	logger.FromContext(ctx, s.logger).Info("Tier updated",
		zap.String("account_id", accountID),
		zap.String("tier", string(t)),
	)
	return s.GetStatus(ctx, accountID)
}

// CalculateAudioCost prices narration of text. Pure, never fails.
func (s *Service) CalculateAudioCost(text string) cost.AudioCost {
	return cost.AudioForText(text)
}
