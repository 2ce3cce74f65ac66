// Package account holds the usage account owned by the persistence layer.
package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taleforge/internal/domain"
)

// Tier is the account classification controlling whether quota gates apply.
type Tier string

// Tier constants.
const (
	TierFree       Tier = "free"
	TierSubscriber Tier = "subscriber"
)

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, nil
	case TierSubscriber:
		return TierSubscriber, nil
	default:
		return "", domain.InvalidInput("unknown tier %q", s)
	}
}

// IsPaid reports whether the tier is a paid subscription.
func (t Tier) IsPaid() bool { return t == TierSubscriber }

// ValidateID checks that an account ID is a well-formed UUID.
func ValidateID(id string) error {
	if id == "" {
		return domain.InvalidInput("account id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.InvalidInput("account id %q is not a uuid", id)
	}
	return nil
}

// Account is the usage record of a single owner.
// Zero reset times mean the period has never started and is treated as expired.
type Account struct {
	ID             string
	Tier           Tier
	DailyUsed      int64
	DailyResetAt   time.Time
	CreditBalance  int64
	CreditsResetAt time.Time
	ActiveStories  int64
}

// New returns an untouched free-tier account.
func New(id string) Account {
	return Account{ID: id, Tier: TierFree}
}

// Effective returns the account as it would look after lazy rollover at now.
// It never writes; stores apply the same rules atomically on mutation.
func (a Account) Effective(now time.Time, p Policy) Account {
	if a.Tier == "" {
		a.Tier = TierFree
	}
	if !now.Before(a.DailyResetAt) {
		a.DailyUsed = 0
		a.DailyResetAt = time.Time{}
	}
	if !now.Before(a.CreditsResetAt) {
		a.CreditBalance = p.MonthlyCredits.For(a.Tier)
		a.CreditsResetAt = time.Time{}
	}
	return a
}

func (a Account) String() string {
	return fmt.Sprintf("account(%s tier=%s daily=%d credits=%d stories=%d)",
		a.ID, a.Tier, a.DailyUsed, a.CreditBalance, a.ActiveStories)
}
