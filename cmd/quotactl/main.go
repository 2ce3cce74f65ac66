// Command quotactl inspects and adjusts usage accounts against the configured store.
//
//	quotactl status --account ID
//	quotactl tier --account ID --tier subscriber
//	quotactl grant --account ID --credits 50
//	quotactl audio-cost --text "Once upon a time"
//	quotactl version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/app"
	"github.com/kailas-cloud/taleforge/internal/config"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	logpkg "github.com/kailas-cloud/taleforge/internal/logger"
	"github.com/kailas-cloud/taleforge/internal/version"
)

const usageText = `usage: quotactl <status|tier|grant|audio-cost|version> [flags]

flags:
`

var errUsage = errors.New("usage")

// quotaAPI is the slice of the quota facade the CLI drives.
type quotaAPI interface {
	Now() time.Time
	GetStatus(ctx context.Context, accountID string) (usage.Status, error)
	CheckActiveStoriesCap(ctx context.Context, accountID string) (usage.StoriesCap, error)
	CreditBalance(ctx context.Context, accountID string) (usage.CreditBalance, error)
	GrantCredits(ctx context.Context, accountID string, credits int64) (int64, error)
	SetTier(ctx context.Context, accountID, tier string) (usage.Status, error)
	CalculateAudioCost(text string) cost.AudioCost
}

type options struct {
	command string
	account string
	tier    string
	credits int64
	text    string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := pflag.NewFlagSet("quotactl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.account, "account", "a", "", "account id (uuid)")
	fs.StringVar(&o.tier, "tier", "", "tier to set: free or subscriber")
	fs.Int64Var(&o.credits, "credits", 0, "credits to grant")
	fs.StringVar(&o.text, "text", "", "narration text to price")
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return o, fmt.Errorf("%w: expected exactly one command", errUsage)
	}
	o.command = fs.Arg(0)

	switch o.command {
	case "status", "tier", "grant":
		if o.account == "" {
			return o, fmt.Errorf("%w: --account is required for %s", errUsage, o.command)
		}
	case "audio-cost", "version":
	default:
		fs.Usage()
		return o, fmt.Errorf("%w: unknown command %q", errUsage, o.command)
	}
	if o.command == "tier" && o.tier == "" {
		return o, fmt.Errorf("%w: --tier is required", errUsage)
	}
	if o.command == "grant" && o.credits < 1 {
		return o, fmt.Errorf("%w: --credits must be at least 1", errUsage)
	}
	return o, nil
}

type statusOutput struct {
	AccountID      string       `json:"accountId"`
	Tier           string       `json:"tier"`
	ChaptersUsed   int64        `json:"chaptersUsed"`
	ChaptersLimit  int64        `json:"chaptersLimit"`
	Remaining      int64        `json:"remaining"`
	ResetAt        time.Time    `json:"resetAt"`
	ResetsIn       string       `json:"resetsIn"`
	ActiveStories  int64        `json:"activeStories"`
	MaxStories     int64        `json:"maxStories"`
	CreditBalance  int64        `json:"creditBalance"`
	MonthlyGrant   int64        `json:"monthlyGrant"`
	CreditsResetAt time.Time    `json:"creditsResetAt"`
	Spent          *usage.Spent `json:"spent,omitempty"`
}

func run(ctx context.Context, o options, q quotaAPI, stdout io.Writer) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	switch o.command {
	case "status":
		st, err := q.GetStatus(ctx, o.account)
		if err != nil {
			return err
		}
		stories, err := q.CheckActiveStoriesCap(ctx, o.account)
		if err != nil {
			return err
		}
		bal, err := q.CreditBalance(ctx, o.account)
		if err != nil {
			return err
		}
		return enc.Encode(statusOutput{
			AccountID:      o.account,
			Tier:           string(st.Tier),
			ChaptersUsed:   st.Chapters.Used(),
			ChaptersLimit:  st.Chapters.Limit(),
			Remaining:      st.Chapters.Remaining(),
			ResetAt:        st.Chapters.ResetsAt(),
			ResetsIn:       period.Describe(st.Chapters.ResetsAt(), q.Now()),
			ActiveStories:  stories.ActiveCount,
			MaxStories:     stories.MaxAllowed,
			CreditBalance:  bal.Balance,
			MonthlyGrant:   bal.MonthlyGrant,
			CreditsResetAt: bal.ResetAt,
			Spent:          bal.Spent,
		})

	case "tier":
		st, err := q.SetTier(ctx, o.account, o.tier)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{
			"accountId": o.account,
			"tier":      st.Tier,
			"isPaid":    st.IsPaid(),
		})

	case "grant":
		balance, err := q.GrantCredits(ctx, o.account, o.credits)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{
			"accountId": o.account,
			"granted":   o.credits,
			"balance":   balance,
		})

	case "audio-cost":
		c := q.CalculateAudioCost(o.text)
		return enc.Encode(map[string]any{
			"words":         c.Words,
			"credits":       c.Credits,
			"breakdownText": c.Breakdown,
		})
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, o.command)
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			_, _ = fmt.Fprintln(stderr, err)
		}
		return 2
	}
	if o.command == "version" {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}

	dotenvErr := config.LoadDotEnv()
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "failed to load config:", err)
		return 1
	}

	// Logs go to stderr; stdout carries JSON only.
	logger, err := logpkg.NewLogger(env, "warn")
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("Failed to load .env file", zap.Error(dotenvErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.Close()

	if err := run(ctx, o, a.Quota, stdout); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
