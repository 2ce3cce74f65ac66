package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
)

// querier is the subset of pgxpool.Pool the SQL store needs.
type querier interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps one row per account. Every conditional mutation is a
// single UPDATE whose WHERE clause carries the limit check, so the row lock
// taken by the UPDATE serializes concurrent requests for the same account.
type PostgresStore struct {
	db          querier
	tablePrefix string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTablePrefix sets the table name prefix (default "taleforge_").
func WithTablePrefix(prefix string) PostgresOption {
	return func(s *PostgresStore) { s.tablePrefix = prefix }
}

// NewPostgres creates a PostgreSQL-backed account store.
func NewPostgres(db querier, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, tablePrefix: "taleforge_"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) table() string { return s.tablePrefix + "accounts" }

// EnsureSchema creates the accounts table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			account_id TEXT PRIMARY KEY,
			tier TEXT NOT NULL DEFAULT 'free',
			daily_used BIGINT NOT NULL DEFAULT 0,
			daily_reset_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			credit_balance BIGINT NOT NULL DEFAULT 0,
			credits_reset_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			active_stories BIGINT NOT NULL DEFAULT 0 CHECK (active_stories >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table())
	if _, err := s.db.Exec(ctx, q); err != nil {
		return storeErr("ensure schema", "", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}

// Get reads the account row. A missing row is a fresh free account.
func (s *PostgresStore) Get(ctx context.Context, id string) (domacc.Account, error) {
	var (
		a                          = domacc.New(id)
		tier                       string
		dailyResetAt, creditsReset time.Time
	)
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT tier, daily_used, daily_reset_at, credit_balance, credits_reset_at, active_stories
			FROM %s WHERE account_id = $1`, s.table()),
		id,
	).Scan(&tier, &a.DailyUsed, &dailyResetAt, &a.CreditBalance, &creditsReset, &a.ActiveStories)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return domacc.Account{}, storeErr("get", id, err)
	}
	a.Tier = domacc.Tier(tier)
	a.DailyResetAt = fromTimestamp(dailyResetAt)
	a.CreditsResetAt = fromTimestamp(creditsReset)
	return a, nil
}

// ConsumeUnits performs the lazy daily reset and the conditional increment in one UPDATE.
func (s *PostgresStore) ConsumeUnits(ctx context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error) {
	if err := s.ensureRow(ctx, req.AccountID); err != nil {
		return domacc.ConsumeOutcome{}, err
	}

	// $1 id, $2 amount, $3 free limit, $4 subscriber limit, $5 now, $6 next reset.
	q := fmt.Sprintf(`
		UPDATE %[1]s SET
			daily_used = (CASE WHEN daily_reset_at <= $5::timestamptz THEN 0 ELSE daily_used END) + $2::bigint,
			daily_reset_at = CASE WHEN daily_reset_at <= $5::timestamptz THEN $6::timestamptz ELSE daily_reset_at END,
			updated_at = now()
		WHERE account_id = $1
			AND (
				(CASE WHEN tier = 'subscriber' THEN $4::bigint ELSE $3::bigint END) <= 0
				OR (CASE WHEN daily_reset_at <= $5::timestamptz THEN 0 ELSE daily_used END) + $2::bigint
					<= (CASE WHEN tier = 'subscriber' THEN $4::bigint ELSE $3::bigint END)
			)
		RETURNING tier, daily_used, daily_reset_at`, s.table())

	var (
		tier    string
		used    int64
		resetAt time.Time
	)
	err := s.db.QueryRow(ctx, q,
		req.AccountID, req.Amount, req.Limits.Free, req.Limits.Subscriber, req.Now, req.NextReset,
	).Scan(&tier, &used, &resetAt)
	if err == nil {
		return domacc.ConsumeOutcome{
			Admitted: true,
			Tier:     domacc.Tier(tier),
			Used:     used,
			ResetAt:  fromTimestamp(resetAt),
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domacc.ConsumeOutcome{}, storeErr("consume", req.AccountID, err)
	}

	// Denied. Report the effective counter without writing.
	a, err := s.Get(ctx, req.AccountID)
	if err != nil {
		return domacc.ConsumeOutcome{}, err
	}
	if !req.Now.Before(a.DailyResetAt) {
		a.DailyUsed = 0
		a.DailyResetAt = req.NextReset
	}
	return domacc.ConsumeOutcome{Tier: a.Tier, Used: a.DailyUsed, ResetAt: a.DailyResetAt}, nil
}

// DebitCredits applies the monthly grant and the conditional subtraction in one UPDATE.
func (s *PostgresStore) DebitCredits(ctx context.Context, req domacc.DebitRequest) (domacc.DebitOutcome, error) {
	if err := s.ensureRow(ctx, req.AccountID); err != nil {
		return domacc.DebitOutcome{}, err
	}

	// $1 id, $2 cost, $3 free grant, $4 subscriber grant, $5 now, $6 next reset.
	q := fmt.Sprintf(`
		UPDATE %[1]s SET
			credit_balance = (CASE WHEN credits_reset_at <= $5::timestamptz
				THEN (CASE WHEN tier = 'subscriber' THEN $4::bigint ELSE $3::bigint END)
				ELSE credit_balance END) - $2::bigint,
			credits_reset_at = CASE WHEN credits_reset_at <= $5::timestamptz THEN $6::timestamptz ELSE credits_reset_at END,
			updated_at = now()
		WHERE account_id = $1
			AND (CASE WHEN credits_reset_at <= $5::timestamptz
				THEN (CASE WHEN tier = 'subscriber' THEN $4::bigint ELSE $3::bigint END)
				ELSE credit_balance END) >= $2::bigint
		RETURNING tier, credit_balance, credits_reset_at`, s.table())

	var (
		tier    string
		balance int64
		resetAt time.Time
	)
	err := s.db.QueryRow(ctx, q,
		req.AccountID, req.Cost, req.Grants.Free, req.Grants.Subscriber, req.Now, req.NextReset,
	).Scan(&tier, &balance, &resetAt)
	if err == nil {
		return domacc.DebitOutcome{
			Debited: true,
			Tier:    domacc.Tier(tier),
			Balance: balance,
			ResetAt: fromTimestamp(resetAt),
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domacc.DebitOutcome{}, storeErr("debit", req.AccountID, err)
	}

	a, err := s.Get(ctx, req.AccountID)
	if err != nil {
		return domacc.DebitOutcome{}, err
	}
	rolloverCredits(&a, req.Grants, req.Now, req.NextReset)
	return domacc.DebitOutcome{Tier: a.Tier, Balance: a.CreditBalance, ResetAt: a.CreditsResetAt}, nil
}

// GrantCredits adds credits on top of the effective balance.
func (s *PostgresStore) GrantCredits(ctx context.Context, req domacc.GrantRequest) (int64, error) {
	if err := s.ensureRow(ctx, req.AccountID); err != nil {
		return 0, err
	}

	q := fmt.Sprintf(`
		UPDATE %[1]s SET
			credit_balance = (CASE WHEN credits_reset_at <= $5::timestamptz
				THEN (CASE WHEN tier = 'subscriber' THEN $4::bigint ELSE $3::bigint END)
				ELSE credit_balance END) + $2::bigint,
			credits_reset_at = CASE WHEN credits_reset_at <= $5::timestamptz THEN $6::timestamptz ELSE credits_reset_at END,
			updated_at = now()
		WHERE account_id = $1
		RETURNING credit_balance`, s.table())

	var balance int64
	err := s.db.QueryRow(ctx, q,
		req.AccountID, req.Credits, req.Grants.Free, req.Grants.Subscriber, req.Now, req.NextReset,
	).Scan(&balance)
	if err != nil {
		return 0, storeErr("grant", req.AccountID, err)
	}
	return balance, nil
}

// OpenStory increments active_stories only while under the tier cap.
func (s *PostgresStore) OpenStory(ctx context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error) {
	if err := s.ensureRow(ctx, req.AccountID); err != nil {
		return domacc.StoryOutcome{}, err
	}

	q := fmt.Sprintf(`
		UPDATE %[1]s SET active_stories = active_stories + 1, updated_at = now()
		WHERE account_id = $1
			AND (
				(CASE WHEN tier = 'subscriber' THEN $3::bigint ELSE $2::bigint END) <= 0
				OR active_stories < (CASE WHEN tier = 'subscriber' THEN $3::bigint ELSE $2::bigint END)
			)
		RETURNING tier, active_stories`, s.table())

	var (
		tier   string
		active int64
	)
	err := s.db.QueryRow(ctx, q, req.AccountID, req.Limits.Free, req.Limits.Subscriber).Scan(&tier, &active)
	if err == nil {
		return domacc.StoryOutcome{Admitted: true, Tier: domacc.Tier(tier), Active: active}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domacc.StoryOutcome{}, storeErr("open story", req.AccountID, err)
	}

	a, err := s.Get(ctx, req.AccountID)
	if err != nil {
		return domacc.StoryOutcome{}, err
	}
	return domacc.StoryOutcome{Tier: a.Tier, Active: a.ActiveStories}, nil
}

// CloseStory decrements active_stories, floored at zero.
func (s *PostgresStore) CloseStory(ctx context.Context, id string) (int64, error) {
	var active int64
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET active_stories = GREATEST(active_stories - 1, 0), updated_at = now()
			WHERE account_id = $1 RETURNING active_stories`, s.table()),
		id,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("close story", id, err)
	}
	return active, nil
}

// SetTier upserts the tier column.
func (s *PostgresStore) SetTier(ctx context.Context, id string, tier domacc.Tier) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (account_id, tier) VALUES ($1, $2)
			ON CONFLICT (account_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = now()`, s.table()),
		id, string(tier),
	)
	if err != nil {
		return storeErr("set tier", id, err)
	}
	return nil
}

func (s *PostgresStore) ensureRow(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (account_id) VALUES ($1) ON CONFLICT DO NOTHING`, s.table()),
		id,
	)
	if err != nil {
		return storeErr("create", id, err)
	}
	return nil
}

// fromTimestamp maps the 'epoch' column default to the zero time.
func fromTimestamp(t time.Time) time.Time {
	if t.Unix() <= 0 {
		return time.Time{}
	}
	return t.UTC()
}
