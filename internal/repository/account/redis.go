package account

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/taleforge/internal/domain"
	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
)

// store is the consumer interface for account hashes and scripts (ISP).
type store interface {
	Ping(ctx context.Context) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	EvalInts(ctx context.Context, script string, keys, args []string) ([]int64, error)
}

// Hash fields of an account record.
const (
	fieldTier           = "tier"
	fieldDailyUsed      = "daily_used"
	fieldDailyResetAt   = "daily_reset_at" // unix millis
	fieldCreditBalance  = "credit_balance"
	fieldCreditsResetAt = "credits_reset_at" // unix millis
	fieldActiveStories  = "active_stories"
)

// Every conditional mutation runs as one script, so the read-decide-write
// cannot interleave with a concurrent request for the same account.
// Replies encode the tier as 0 (free) or 1 (subscriber).

// consumeScript: KEYS[1]=account, ARGV = amount, limit_free, limit_subscriber, now_ms, next_reset_ms.
// Returns {admitted, used, reset_at_ms, tier}.
const consumeScript = `
local key = KEYS[1]
local amount = tonumber(ARGV[1])
local now = tonumber(ARGV[4])
local tier = redis.call("HGET", key, "tier") or "free"
local limit = tonumber(ARGV[2])
local tcode = 0
if tier == "subscriber" then
    limit = tonumber(ARGV[3])
    tcode = 1
end

local used = tonumber(redis.call("HGET", key, "daily_used") or "0")
local reset_at = tonumber(redis.call("HGET", key, "daily_reset_at") or "0")
if now >= reset_at then
    used = 0
    reset_at = tonumber(ARGV[5])
    redis.call("HSET", key, "tier", tier, "daily_used", "0", "daily_reset_at", ARGV[5])
end

if limit > 0 and used + amount > limit then
    return {0, used, reset_at, tcode}
end

used = redis.call("HINCRBY", key, "daily_used", amount)
return {1, used, reset_at, tcode}
`

// debitScript: KEYS[1]=account, ARGV = cost, grant_free, grant_subscriber, now_ms, next_reset_ms.
// Returns {debited, balance, reset_at_ms, tier}.
const debitScript = `
local key = KEYS[1]
local cost = tonumber(ARGV[1])
local now = tonumber(ARGV[4])
local tier = redis.call("HGET", key, "tier") or "free"
local grant = tonumber(ARGV[2])
local tcode = 0
if tier == "subscriber" then
    grant = tonumber(ARGV[3])
    tcode = 1
end

local balance = tonumber(redis.call("HGET", key, "credit_balance") or "0")
local reset_at = tonumber(redis.call("HGET", key, "credits_reset_at") or "0")
if now >= reset_at then
    balance = grant
    reset_at = tonumber(ARGV[5])
    redis.call("HSET", key, "tier", tier, "credit_balance", tostring(grant), "credits_reset_at", ARGV[5])
end

if balance < cost then
    return {0, balance, reset_at, tcode}
end

balance = redis.call("HINCRBY", key, "credit_balance", -cost)
return {1, balance, reset_at, tcode}
`

// grantScript: KEYS[1]=account, ARGV = credits, grant_free, grant_subscriber, now_ms, next_reset_ms.
// Returns {balance}.
const grantScript = `
local key = KEYS[1]
local now = tonumber(ARGV[4])
local tier = redis.call("HGET", key, "tier") or "free"
local grant = tonumber(ARGV[2])
if tier == "subscriber" then
    grant = tonumber(ARGV[3])
end

local reset_at = tonumber(redis.call("HGET", key, "credits_reset_at") or "0")
if now >= reset_at then
    redis.call("HSET", key, "tier", tier, "credit_balance", tostring(grant), "credits_reset_at", ARGV[5])
end

return {redis.call("HINCRBY", key, "credit_balance", tonumber(ARGV[1]))}
`

// openStoryScript: KEYS[1]=account, ARGV = limit_free, limit_subscriber.
// Returns {admitted, active, tier}.
const openStoryScript = `
local key = KEYS[1]
local tier = redis.call("HGET", key, "tier") or "free"
local limit = tonumber(ARGV[1])
local tcode = 0
if tier == "subscriber" then
    limit = tonumber(ARGV[2])
    tcode = 1
end

local active = tonumber(redis.call("HGET", key, "active_stories") or "0")
if limit > 0 and active >= limit then
    return {0, active, tcode}
end

return {1, redis.call("HINCRBY", key, "active_stories", 1), tcode}
`

// closeStoryScript: KEYS[1]=account. Returns {active}.
const closeStoryScript = `
local key = KEYS[1]
local active = tonumber(redis.call("HGET", key, "active_stories") or "0")
if active <= 0 then
    return {0}
end
return {redis.call("HINCRBY", key, "active_stories", -1)}
`

// RedisStore keeps one hash per account in Redis or Valkey.
type RedisStore struct {
	store     store
	keyPrefix string
}

// NewRedis creates a Redis-backed account store.
// keyPrefix defaults to domain.KeyPrefix when empty.
func NewRedis(s store, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &RedisStore{store: s, keyPrefix: keyPrefix}
}

func (r *RedisStore) key(id string) string {
	return fmt.Sprintf("%saccount:%s", r.keyPrefix, id)
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}

// Get reads the account hash. A missing hash is a fresh free account.
func (r *RedisStore) Get(ctx context.Context, id string) (domacc.Account, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domacc.Account{}, storeErr("get", id, err)
	}
	a, err := accountFromHash(id, fields)
	if err != nil {
		return domacc.Account{}, storeErr("get", id, err)
	}
	return a, nil
}

// ConsumeUnits runs the conditional daily increment script.
func (r *RedisStore) ConsumeUnits(ctx context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error) {
	args := []string{
		strconv.FormatInt(req.Amount, 10),
		strconv.FormatInt(req.Limits.Free, 10),
		strconv.FormatInt(req.Limits.Subscriber, 10),
		millis(req.Now),
		millis(req.NextReset),
	}
	vals, err := r.eval(ctx, "consume", consumeScript, req.AccountID, args, 4)
	if err != nil {
		return domacc.ConsumeOutcome{}, err
	}
	return domacc.ConsumeOutcome{
		Admitted: vals[0] == 1,
		Used:     vals[1],
		ResetAt:  fromMillis(vals[2]),
		Tier:     tierFromCode(vals[3]),
	}, nil
}

// DebitCredits runs the conditional credit subtraction script.
func (r *RedisStore) DebitCredits(ctx context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error) {
	args := []string{
		strconv.FormatInt(req.Cost, 10),
		strconv.FormatInt(req.Grants.Free, 10),
		strconv.FormatInt(req.Grants.Subscriber, 10),
		millis(req.Now),
		millis(req.NextReset),
	}
	vals, err := r.eval(ctx, "debit", debitScript, req.AccountID, args, 4)
	if err != nil {
		return domacc.DebitOutcome{}, err
	}
	return domacc.DebitOutcome{
		Debited: vals[0] == 1,
		Balance: vals[1],
		ResetAt: fromMillis(vals[2]),
		Tier:    tierFromCode(vals[3]),
	}, nil
}

// GrantCredits adds credits after applying the monthly rollover.
func (r *RedisStore) GrantCredits(ctx context.Context, req domacc.GrantRequest) (int64, error) {
	args := []string{
		strconv.FormatInt(req.Credits, 10),
		strconv.FormatInt(req.Grants.Free, 10),
		strconv.FormatInt(req.Grants.Subscriber, 10),
		millis(req.Now),
		millis(req.NextReset),
	}
	vals, err := r.eval(ctx, "grant", grantScript, req.AccountID, args, 1)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// OpenStory runs the conditional active-stories increment script.
func (r *RedisStore) OpenStory(ctx context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error) {
	args := []string{
		strconv.FormatInt(req.Limits.Free, 10),
		strconv.FormatInt(req.Limits.Subscriber, 10),
	}
	vals, err := r.eval(ctx, "open story", openStoryScript, req.AccountID, args, 3)
	if err != nil {
		return domacc.StoryOutcome{}, err
	}
	return domacc.StoryOutcome{
		Admitted: vals[0] == 1,
		Active:   vals[1],
		Tier:     tierFromCode(vals[2]),
	}, nil
}

// CloseStory decrements the active-stories count, floored at zero.
func (r *RedisStore) CloseStory(ctx context.Context, id string) (int64, error) {
	vals, err := r.eval(ctx, "close story", closeStoryScript, id, nil, 1)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// SetTier sets the tier field. A single-field HSET is atomic on its own.
func (r *RedisStore) SetTier(ctx context.Context, id string, tier domacc.Tier) error {
	if err := r.store.HSet(ctx, r.key(id), map[string]string{fieldTier: string(tier)}); err != nil {
		return storeErr("set tier", id, err)
	}
	return nil
}

func (r *RedisStore) eval(ctx context.Context, op, script, id string, args []string, want int) ([]int64, error) {
	vals, err := r.store.EvalInts(ctx, script, []string{r.key(id)}, args)
	if err != nil {
		return nil, storeErr(op, id, err)
	}
	if len(vals) < want {
		return nil, storeErr(op, id, fmt.Errorf("script returned %d values, want %d", len(vals), want))
	}
	return vals, nil
}

func accountFromHash(id string, fields map[string]string) (domacc.Account, error) {
	a := domacc.New(id)
	if len(fields) == 0 {
		return a, nil
	}
	if t := fields[fieldTier]; t != "" {
		a.Tier = domacc.Tier(t)
	}

	ints := map[string]*int64{
		fieldDailyUsed:     &a.DailyUsed,
		fieldCreditBalance: &a.CreditBalance,
		fieldActiveStories: &a.ActiveStories,
	}
	for name, dst := range ints {
		v, err := parseInt(fields, name)
		if err != nil {
			return domacc.Account{}, err
		}
		*dst = v
	}

	dailyReset, err := parseInt(fields, fieldDailyResetAt)
	if err != nil {
		return domacc.Account{}, err
	}
	creditsReset, err := parseInt(fields, fieldCreditsResetAt)
	if err != nil {
		return domacc.Account{}, err
	}
	a.DailyResetAt = fromMillis(dailyReset)
	a.CreditsResetAt = fromMillis(creditsReset)
	return a, nil
}

func parseInt(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account field %s=%q: %w", name, raw, err)
	}
	return v, nil
}

func tierFromCode(code int64) domacc.Tier {
	if code == 1 {
		return domacc.TierSubscriber
	}
	return domacc.TierFree
}

func millis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
