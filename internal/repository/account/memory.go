package account

import (
	"context"
	"sync"
	"time"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
)

// MemoryStore keeps accounts in process memory behind a single mutex.
// Suitable for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*domacc.Account
}

// NewMemory creates an empty in-memory account store.
func NewMemory() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*domacc.Account)}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Get returns a copy of the stored account, or a fresh free account.
func (s *MemoryStore) Get(_ context.Context, id string) (domacc.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[id]; ok {
		return *a, nil
	}
	return domacc.New(id), nil
}

// ConsumeUnits applies lazy daily reset and a conditional increment under one lock.
func (s *MemoryStore) ConsumeUnits(_ context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.load(req.AccountID)
	if !req.Now.Before(a.DailyResetAt) {
		a.DailyUsed = 0
		a.DailyResetAt = req.NextReset
	}

	limit := req.Limits.LimitFor(a.Tier)
	if limit > 0 && a.DailyUsed+req.Amount > limit {
		return domacc.ConsumeOutcome{Tier: a.Tier, Used: a.DailyUsed, ResetAt: a.DailyResetAt}, nil
	}

	a.DailyUsed += req.Amount
	return domacc.ConsumeOutcome{Admitted: true, Tier: a.Tier, Used: a.DailyUsed, ResetAt: a.DailyResetAt}, nil
}

// DebitCredits applies the lazy monthly grant and a conditional subtraction under one lock.
func (s *MemoryStore) DebitCredits(_ context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.load(req.AccountID)
	rolloverCredits(a, req.Grants, req.Now, req.NextReset)

	if a.CreditBalance < req.Cost {
		return domacc.DebitOutcome{Tier: a.Tier, Balance: a.CreditBalance, ResetAt: a.CreditsResetAt}, nil
	}

	a.CreditBalance -= req.Cost
	return domacc.DebitOutcome{Debited: true, Tier: a.Tier, Balance: a.CreditBalance, ResetAt: a.CreditsResetAt}, nil
}

// GrantCredits adds credits to the effective balance and returns the new balance.
func (s *MemoryStore) GrantCredits(_ context.Context, req domacc.GrantRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.load(req.AccountID)
	rolloverCredits(a, req.Grants, req.Now, req.NextReset)
	a.CreditBalance += req.Credits
	return a.CreditBalance, nil
}

// OpenStory increments the active-stories count if the tier cap allows it.
func (s *MemoryStore) OpenStory(_ context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.load(req.AccountID)
	limit := req.Limits.LimitFor(a.Tier)
	if limit > 0 && a.ActiveStories >= limit {
		return domacc.StoryOutcome{Tier: a.Tier, Active: a.ActiveStories}, nil
	}
	a.ActiveStories++
	return domacc.StoryOutcome{Admitted: true, Tier: a.Tier, Active: a.ActiveStories}, nil
}

// CloseStory decrements the active-stories count, never below zero.
func (s *MemoryStore) CloseStory(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return 0, nil
	}
	if a.ActiveStories > 0 {
		a.ActiveStories--
	}
	return a.ActiveStories, nil
}

// SetTier records the tier reported by the subscription source of truth.
func (s *MemoryStore) SetTier(_ context.Context, id string, tier domacc.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(id).Tier = tier
	return nil
}

// load returns the mutable record, creating it on first touch. Caller holds mu.
func (s *MemoryStore) load(id string) *domacc.Account {
	a, ok := s.accounts[id]
	if !ok {
		fresh := domacc.New(id)
		a = &fresh
		s.accounts[id] = a
	}
	return a
}

func rolloverCredits(a *domacc.Account, grants domacc.TierValues, now, next time.Time) {
	if !now.Before(a.CreditsResetAt) {
		a.CreditBalance = grants.For(a.Tier)
		a.CreditsResetAt = next
	}
}
