// Package usage holds the results the quota service returns to callers.
package usage

import (
	"time"

	"github.com/kailas-cloud/taleforge/internal/domain"
	"github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage/budget"
)

// Denial messages shown to end users.
const (
	MsgDailyLimitReached   = "Daily chapter limit reached"
	MsgActiveStoriesCapped = "Active story limit reached"
	MsgInsufficientCredits = "Insufficient credits"
)

// Status is a read-only snapshot of an account's daily chapter quota.
type Status struct {
	AccountID string
	Tier      account.Tier
	Chapters  budget.Budget
}

// IsPaid reports whether the account bypasses the daily gate.
func (s Status) IsPaid() bool { return s.Tier.IsPaid() }

// ConsumeResult is the outcome of a consumption attempt.
// A denial is a result, not an error; Remaining is -1 for unlimited tiers.
type ConsumeResult struct {
	Success   bool
	Used      int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	Error     string
}

// NewConsumeResult builds a result from the post-operation counter.
func NewConsumeResult(admitted bool, b budget.Budget) ConsumeResult {
	r := ConsumeResult{
		Success:   admitted,
		Used:      b.Used(),
		Limit:     b.Limit(),
		Remaining: b.Remaining(),
		ResetAt:   b.ResetsAt(),
	}
	if !admitted {
		r.Error = MsgDailyLimitReached
	}
	return r
}

// Err converts a denial into a *domain.QuotaDeniedError. Nil on success.
func (r ConsumeResult) Err(now time.Time) error {
	if r.Success {
		return nil
	}
	return domain.NewQuotaDenied(r.Error, r.ResetAt, period.HoursUntilReset(r.ResetAt, now))
}

// StoriesCap reports whether the account may start another story.
type StoriesCap struct {
	ActiveCount  int64
	MaxAllowed   int64 // -1 = unlimited
	CanCreateNew bool
}

// NewStoriesCap evaluates the active-stories ceiling.
func NewStoriesCap(tier account.Tier, active, maxAllowed int64) StoriesCap {
	if maxAllowed <= 0 {
		maxAllowed = account.Unlimited
	}
	return StoriesCap{
		ActiveCount:  active,
		MaxAllowed:   maxAllowed,
		CanCreateNew: tier.IsPaid() || maxAllowed < 0 || active < maxAllowed,
	}
}

// StoryResult is the outcome of registering a new active story.
type StoryResult struct {
	Success bool
	Cap     StoriesCap
	Error   string
}

// CreditResult is the outcome of a metered charge.
type CreditResult struct {
	Success   bool
	Operation cost.Operation
	Cost      int64
	Balance   int64
	ResetAt   time.Time
	Error     string
}

// CreditBalance is the effective balance and the next monthly grant.
// Spent is nil when no spend ledger is configured.
type CreditBalance struct {
	Tier         account.Tier
	Balance      int64
	MonthlyGrant int64
	ResetAt      time.Time
	Spent        *Spent
}

// Spent is the credits debited in the current UTC day and month.
type Spent struct {
	Today     int64
	ThisMonth int64
}
