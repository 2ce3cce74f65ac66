// Package credits prices metered operations and debits credit balances.
package credits

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/domain"
	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	"github.com/kailas-cloud/taleforge/internal/logger"
	"github.com/kailas-cloud/taleforge/internal/metrics"
)

// ledgerTimeout bounds the write-behind to the spend ledger.
const ledgerTimeout = 2 * time.Second

// Service handles credit charges, balances and admin grants.
type Service struct {
	store  Store
	ledger Ledger
	policy domacc.Policy
	now    func() time.Time
	logger *zap.Logger
}

// New creates a credits service.
func New(store Store, policy domacc.Policy, logger *zap.Logger) *Service {
	return &Service{store: store, policy: policy, now: time.Now, logger: logger}
}

// WithLedger attaches a spend ledger.
func (s *Service) WithLedger(l Ledger) *Service {
	s.ledger = l
	return s
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Charge prices op (audio by word count of text) and debits it atomically.
// An insufficient balance is an unsuccessful result, not an error.
func (s *Service) Charge(ctx context.Context, accountID string, op cost.Operation, text string) (usage.CreditResult, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.CreditResult{}, err
	}

	price := cost.ForOperation(op, text)
	now := s.now().UTC()
	out, err := s.store.DebitCredits(ctx, domacc.DebitRequest{
		AccountID: accountID,
		Cost:      price,
		Grants:    s.policy.MonthlyCredits,
		Now:       now,
		NextReset: period.NextMonthly(now),
	})
	if err != nil {
		return usage.CreditResult{}, fmt.Errorf("debit credits: %w", err)
	}

	metrics.QuotaDecisionsTotal.WithLabelValues(metrics.GateCredits, string(out.Tier), metrics.Decision(out.Debited)).Inc()

	res := usage.CreditResult{
		Success:   out.Debited,
		Operation: op,
		Cost:      price,
		Balance:   out.Balance,
		ResetAt:   out.ResetAt,
	}
	if !out.Debited {
		res.Error = usage.MsgInsufficientCredits
		logger.FromContext(ctx, s.logger).Info("Credit charge denied",
			zap.String("account_id", accountID),
			zap.String("operation", string(op)),
			zap.Int64("cost", price),
			zap.Int64("balance", out.Balance),
		)
		return res, nil
	}

	metrics.CreditsChargedTotal.WithLabelValues(string(op), string(out.Tier)).Add(float64(price))
	s.record(ctx, accountID, price, now)
	return res, nil
}

// Balance returns the effective balance after a pending monthly grant.
func (s *Service) Balance(ctx context.Context, accountID string) (usage.CreditBalance, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return usage.CreditBalance{}, err
	}

	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return usage.CreditBalance{}, fmt.Errorf("get account: %w", err)
	}

	now := s.now().UTC()
	eff := a.Effective(now, s.policy)
	resetAt := eff.CreditsResetAt
	if resetAt.IsZero() {
		resetAt = period.NextMonthly(now)
	}

	bal := usage.CreditBalance{
		Tier:         eff.Tier,
		Balance:      eff.CreditBalance,
		MonthlyGrant: s.policy.MonthlyCredits.For(eff.Tier),
		ResetAt:      resetAt,
	}

	if s.ledger != nil {
		spent, err := s.ledger.Spent(ctx, accountID, now)
		if err != nil {
			logger.FromContext(ctx, s.logger).Warn("Failed to read spend ledger",
				zap.String("account_id", accountID), zap.Error(err))
		} else {
			bal.Spent = &spent
		}
	}
	return bal, nil
}

// Grant adds purchased or admin credits on top of the effective balance.
func (s *Service) Grant(ctx context.Context, accountID string, credits int64) (int64, error) {
	if err := domacc.ValidateID(accountID); err != nil {
		return 0, err
	}
	if credits < 1 {
		return 0, domain.InvalidInput("credits must be at least 1, got %d", credits)
	}

	now := s.now().UTC()
	balance, err := s.store.GrantCredits(ctx, domacc.GrantRequest{
		AccountID: accountID,
		Credits:   credits,
		Grants:    s.policy.MonthlyCredits,
		Now:       now,
		NextReset: period.NextMonthly(now),
	})
	if err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}

	metrics.CreditsGrantedTotal.Add(float64(credits))
	logger.FromContext(ctx, s.logger).Info("Credits granted",
		zap.String("account_id", accountID),
		zap.Int64("credits", credits),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

// record is a write-behind to the spend ledger. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, accountID string, credits int64, now time.Time) {
	if s.ledger == nil {
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()

	if err := s.ledger.Record(wctx, accountID, credits, now); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to record credit spend",
			zap.String("account_id", accountID),
			zap.Int64("credits", credits),
			zap.Error(err),
		)
	}
}
