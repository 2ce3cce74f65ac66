// Package ledger keeps per-account counters of credits spent, bucketed by UTC
// day and month. It is reporting only: admission decisions never read it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/taleforge/internal/domain"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
)

// store is the consumer interface for ledger operations (ISP).
type store interface {
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
	MGetInts(ctx context.Context, keys ...string) ([]int64, error)
}

// Store implements the spend ledger on top of DB (pipelined INCRBY + EXPIRE NX, MGET).
type Store struct {
	store     store
	keyPrefix string
	dailyTTL  time.Duration
	monthTTL  time.Duration
}

// New creates a ledger store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, keyPrefix string, dailyTTL, monthTTL time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Store{
		store:     s,
		keyPrefix: keyPrefix,
		dailyTTL:  dailyTTL,
		monthTTL:  monthTTL,
	}
}

// Record adds credits to the day and month buckets of now.
func (s *Store) Record(ctx context.Context, accountID string, credits int64, now time.Time) error {
	if credits <= 0 {
		return nil
	}
	if err := s.incr(ctx, s.dailyKey(accountID, now), credits, s.dailyTTL); err != nil {
		return err
	}
	return s.incr(ctx, s.monthlyKey(accountID, now), credits, s.monthTTL)
}

// Spent returns the day and month totals for now.
func (s *Store) Spent(ctx context.Context, accountID string, now time.Time) (usage.Spent, error) {
	keys := []string{s.dailyKey(accountID, now), s.monthlyKey(accountID, now)}
	vals, err := s.store.MGetInts(ctx, keys...)
	if err != nil {
		return usage.Spent{}, fmt.Errorf("ledger MGET %s: %w", accountID, err)
	}
	if len(vals) != len(keys) {
		return usage.Spent{}, fmt.Errorf("ledger MGET %s: got %d values for %d keys", accountID, len(vals), len(keys))
	}
	return usage.Spent{Today: vals[0], ThisMonth: vals[1]}, nil
}

// Keys hash-tag the account id so both buckets live in one cluster slot.
func (s *Store) dailyKey(accountID string, t time.Time) string {
	return fmt.Sprintf("%sledger:{%s}:daily:%s", s.keyPrefix, accountID, t.UTC().Format("2006-01-02"))
}

func (s *Store) monthlyKey(accountID string, t time.Time) string {
	return fmt.Sprintf("%sledger:{%s}:monthly:%s", s.keyPrefix, accountID, t.UTC().Format("2006-01"))
}

func (s *Store) incr(ctx context.Context, key string, val int64, ttl time.Duration) error {
	if _, err := s.store.IncrByWithTTL(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("ledger INCRBY %s: %w", key, err)
	}
	return nil
}
