package taleforge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/app"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
)

// Client is the embedded taleforge quota client.
type Client struct {
	quota     quotaUseCase
	healthSvc healthUseCase
	obs       *observer
	closer    func()
}

// quotaUseCase is the internal interface for the quota facade.
type quotaUseCase interface {
	Now() time.Time
	GetStatus(ctx context.Context, accountID string) (usage.Status, error)
	TryConsume(ctx context.Context, accountID string, amount int64) (usage.ConsumeResult, error)
	RequireChapters(ctx context.Context, accountID string, amount int64) error
	CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error)
	OpenStory(ctx context.Context, accountID string) (usage.StoryResult, error)
	CloseStory(ctx context.Context, accountID string) (usage.StoriesCap, error)
	ChargeCredits(ctx context.Context, accountID string, op cost.Operation, text string) (usage.CreditResult, error)
	CreditBalance(ctx context.Context, accountID string) (usage.CreditBalance, error)
	GrantCredits(ctx context.Context, accountID string, credits int64) (int64, error)
	SetTier(ctx context.Context, accountID, tier string) (usage.Status, error)
}

// New creates a new taleforge client. Without a store option the client keeps
// accounts in memory.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg := cc.toConfig()
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("taleforge: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("taleforge: %w", err)
	}

	return &Client{
		quota:     a.Quota,
		healthSvc: a.Health,
		obs:       obs,
		closer:    a.Close,
	}, nil
}

// Close releases the underlying database connections.
func (c *Client) Close() error {
	if c.closer != nil {
		c.closer()
	}
	return nil
}

// Status returns the daily chapter quota without consuming anything.
func (c *Client) Status(ctx context.Context, accountID string) (Status, error) {
	start := time.Now()
	st, err := c.quota.GetStatus(ctx, accountID)
	c.obs.observe("status", start, true, err)
	if err != nil {
		return Status{}, err
	}
	return c.toStatus(st), nil
}

// UseOneChapter consumes one chapter from the daily quota.
func (c *Client) UseOneChapter(ctx context.Context, accountID string) (ConsumeResult, error) {
	return c.tryConsume(ctx, "use_one_chapter", accountID, 1)
}

// TryConsume consumes amount chapters if the whole amount fits. A denial is
// reported with Success=false and leaves the counter untouched.
func (c *Client) TryConsume(ctx context.Context, accountID string, amount int64) (ConsumeResult, error) {
	return c.tryConsume(ctx, "try_consume", accountID, amount)
}

func (c *Client) tryConsume(ctx context.Context, op, accountID string, amount int64) (ConsumeResult, error) {
	start := time.Now()
	r, err := c.quota.TryConsume(ctx, accountID, amount)
	c.obs.observe(op, start, r.Success, err)
	if err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult(r), nil
}

// RequireChapters is TryConsume for callers that prefer errors over results.
// A denial returns a *QuotaDeniedError matching ErrQuotaDenied.
func (c *Client) RequireChapters(ctx context.Context, accountID string, amount int64) error {
	start := time.Now()
	err := c.quota.RequireChapters(ctx, accountID, amount)
	c.obs.observe("require_chapters", start, true, err)
	return err
}

// StoriesCap reports the active story count against the tier cap.
func (c *Client) StoriesCap(ctx context.Context, accountID string) (StoriesCap, error) {
	start := time.Now()
	sc, err := c.quota.CheckActiveStoriesCap(ctx, accountID)
	c.obs.observe("stories_cap", start, true, err)
	if err != nil {
		return StoriesCap{}, err
	}
	return StoriesCap(sc), nil
}

// OpenStory registers a new active story if the cap allows it.
func (c *Client) OpenStory(ctx context.Context, accountID string) (StoryResult, error) {
	start := time.Now()
	r, err := c.quota.OpenStory(ctx, accountID)
	c.obs.observe("open_story", start, r.Success, err)
	if err != nil {
		return StoryResult{}, err
	}
	return StoryResult{Success: r.Success, Cap: StoriesCap(r.Cap), Error: r.Error}, nil
}

// CloseStory marks one active story as finished. Never goes below zero.
func (c *Client) CloseStory(ctx context.Context, accountID string) (StoriesCap, error) {
	start := time.Now()
	sc, err := c.quota.CloseStory(ctx, accountID)
	c.obs.observe("close_story", start, true, err)
	if err != nil {
		return StoriesCap{}, err
	}
	return StoriesCap(sc), nil
}

// Charge debits the credit cost of op. text is only priced for audio.
func (c *Client) Charge(ctx context.Context, accountID string, op Operation, text string) (CreditResult, error) {
	start := time.Now()
	r, err := c.quota.ChargeCredits(ctx, accountID, cost.Operation(op), text)
	c.obs.observe("charge", start, r.Success, err)
	if err != nil {
		return CreditResult{}, err
	}
	return CreditResult{
		Success:   r.Success,
		Operation: Operation(r.Operation),
		Cost:      r.Cost,
		Balance:   r.Balance,
		ResetAt:   r.ResetAt,
		Error:     r.Error,
	}, nil
}

// Balance returns the effective credit balance.
func (c *Client) Balance(ctx context.Context, accountID string) (CreditBalance, error) {
	start := time.Now()
	b, err := c.quota.CreditBalance(ctx, accountID)
	c.obs.observe("balance", start, true, err)
	if err != nil {
		return CreditBalance{}, err
	}
	out := CreditBalance{
		Tier:         Tier(b.Tier),
		Balance:      b.Balance,
		MonthlyGrant: b.MonthlyGrant,
		ResetAt:      b.ResetAt,
	}
	if b.Spent != nil {
		out.Spent = &Spent{Today: b.Spent.Today, ThisMonth: b.Spent.ThisMonth}
	}
	return out, nil
}

// Grant adds credits on top of the current balance and returns the new balance.
func (c *Client) Grant(ctx context.Context, accountID string, credits int64) (int64, error) {
	start := time.Now()
	b, err := c.quota.GrantCredits(ctx, accountID, credits)
	c.obs.observe("grant", start, true, err)
	return b, err
}

// SetTier records the account tier and returns the resulting status.
func (c *Client) SetTier(ctx context.Context, accountID string, tier Tier) (Status, error) {
	start := time.Now()
	st, err := c.quota.SetTier(ctx, accountID, string(tier))
	c.obs.observe("set_tier", start, true, err)
	if err != nil {
		return Status{}, err
	}
	return c.toStatus(st), nil
}

// CalculateAudioCost prices narration of text: one credit per started 100 words,
// minimum one.
func CalculateAudioCost(text string) AudioCost {
	ac := cost.AudioForText(text)
	return AudioCost{Words: ac.Words, Credits: ac.Credits, BreakdownText: ac.Breakdown}
}

func (c *Client) toStatus(st usage.Status) Status {
	resetAt := st.Chapters.ResetsAt()
	return Status{
		AccountID:       st.AccountID,
		Tier:            Tier(st.Tier),
		IsPaid:          st.IsPaid(),
		Used:            st.Chapters.Used(),
		Limit:           st.Chapters.Limit(),
		Remaining:       st.Chapters.Remaining(),
		State:           string(st.Chapters.State()),
		ResetAt:         resetAt,
		HoursUntilReset: period.HoursUntilReset(resetAt, c.quota.Now()),
	}
}
