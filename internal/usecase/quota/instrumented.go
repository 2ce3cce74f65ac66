package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	"github.com/kailas-cloud/taleforge/internal/logger"
	"github.com/kailas-cloud/taleforge/internal/metrics"
)

// InstrumentedStore wraps an AccountStore with latency metrics and error logging.
type InstrumentedStore struct {
	inner  AccountStore
	driver string
	logger *zap.Logger
}

// NewInstrumentedStore wraps a store. driver labels the metrics (memory, redis, postgres).
func NewInstrumentedStore(inner AccountStore, driver string, logger *zap.Logger) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, driver: driver, logger: logger}
}

func (s *InstrumentedStore) observe(ctx context.Context, op, accountID string, start time.Time, err error) {
	duration := time.Since(start)
	metrics.StoreRequestDuration.WithLabelValues(s.driver, op).Observe(duration.Seconds())
	if err == nil {
		return
	}

	metrics.StoreErrorsTotal.WithLabelValues(s.driver, op).Inc()
	logger.FromContext(ctx, s.logger).Error("Account store call failed",
		zap.String("driver", s.driver),
		zap.String("op", op),
		zap.String("account_id", accountID),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
}

// Ping delegates to the inner store.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observe(ctx, "ping", "", start, err)
	return err //nolint:wrapcheck // decorator passes inner errors through
}

// Get delegates to the inner store.
func (s *InstrumentedStore) Get(ctx context.Context, id string) (domacc.Account, error) {
	start := time.Now()
	a, err := s.inner.Get(ctx, id)
	s.observe(ctx, "get", id, start, err)
	return a, err //nolint:wrapcheck // decorator passes inner errors through
}

// ConsumeUnits delegates to the inner store.
func (s *InstrumentedStore) ConsumeUnits(ctx context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error) {
	start := time.Now()
	out, err := s.inner.ConsumeUnits(ctx, req)
	s.observe(ctx, "consume", req.AccountID, start, err)
	return out, err //nolint:wrapcheck // decorator passes inner errors through
}

// DebitCredits delegates to the inner store.
func (s *InstrumentedStore) DebitCredits(ctx context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error) {
	start := time.Now()
	out, err := s.inner.DebitCredits(ctx, req)
	s.observe(ctx, "debit", req.AccountID, start, err)
	return out, err //nolint:wrapcheck // decorator passes inner errors through
}

// GrantCredits delegates to the inner store.
func (s *InstrumentedStore) GrantCredits(ctx context.Context, req domacc.GrantRequest) (int64, error) {
	start := time.Now()
	balance, err := s.inner.GrantCredits(ctx, req)
	s.observe(ctx, "grant", req.AccountID, start, err)
	return balance, err //nolint:wrapcheck // decorator passes inner errors through
}

// OpenStory delegates to the inner store.
func (s *InstrumentedStore) OpenStory(ctx context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error) {
	start := time.Now()
	out, err := s.inner.OpenStory(ctx, req)
	s.observe(ctx, "open_story", req.AccountID, start, err)
	return out, err //nolint:wrapcheck // decorator passes inner errors through
}

// CloseStory delegates to the inner store.
func (s *InstrumentedStore) CloseStory(ctx context.Context, id string) (int64, error) {
	start := time.Now()
	active, err := s.inner.CloseStory(ctx, id)
	s.observe(ctx, "close_story", id, start, err)
	return active, err //nolint:wrapcheck // decorator passes inner errors through
}

// SetTier delegates to the inner store.
func (s *InstrumentedStore) SetTier(ctx context.Context, id string, tier domacc.Tier) error {
	start := time.Now()
	err := s.inner.SetTier(ctx, id, tier)
	s.observe(ctx, "set_tier", id, start, err)
	return err //nolint:wrapcheck // decorator passes inner errors through
}
