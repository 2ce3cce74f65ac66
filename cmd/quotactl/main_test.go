package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/domain"
	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
	repoacc "github.com/kailas-cloud/taleforge/internal/repository/account"
	"github.com/kailas-cloud/taleforge/internal/usecase/credits"
	"github.com/kailas-cloud/taleforge/internal/usecase/gate"
	"github.com/kailas-cloud/taleforge/internal/usecase/quota"
)

const accountID = "6f1c2f4e-9a3b-4c55-8d7e-2b1a0c9d8e7f"

func newTestQuota() *quota.Service {
	now := func() time.Time { return time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC) }
	store := repoacc.NewMemory()
	policy := domacc.DefaultPolicy()
	log := zap.NewNop()
	g := gate.New(store, policy, log).WithClock(now)
	c := credits.New(store, policy, log).WithClock(now)
	return quota.New(store, g, c, policy, log).WithClock(now)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    options
	}{
		{"status", []string{"status", "--account", accountID}, false, options{command: "status", account: accountID}},
		{"flags first", []string{"-a", accountID, "grant", "--credits", "5"}, false,
			options{command: "grant", account: accountID, credits: 5}},
		{"audio without account", []string{"audio-cost", "--text", "hi there"}, false,
			options{command: "audio-cost", text: "hi there"}},
		{"version", []string{"version"}, false, options{command: "version"}},
		{"no command", []string{"--account", accountID}, true, options{}},
		{"unknown command", []string{"delete", "--account", accountID}, true, options{}},
		{"missing account", []string{"status"}, true, options{}},
		{"tier without value", []string{"tier", "--account", accountID}, true, options{}},
		{"bad credits", []string{"grant", "--account", accountID, "--credits", "lots"}, true, options{}},
		{"grant without credits", []string{"grant", "--account", accountID}, true, options{}},
		{"grant zero credits", []string{"grant", "--account", accountID, "--credits", "0"}, true, options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr {
				if !errors.Is(err, errUsage) {
					t.Fatalf("expected usage error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRun_Status(t *testing.T) {
	q := newTestQuota()
	ctx := context.Background()
	if _, err := q.UseOneChapter(ctx, accountID); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(ctx, options{command: "status", account: accountID}, q, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got statusOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, out.String())
	}
	if got.Tier != "free" || got.ChaptersUsed != 1 || got.Remaining != 3 {
		t.Errorf("chapters: %+v", got)
	}
	if got.ResetsIn != "in 9 hours" {
		t.Errorf("resetsIn: %q", got.ResetsIn)
	}
	if got.MaxStories != 2 || got.CreditBalance != 10 || got.MonthlyGrant != 10 {
		t.Errorf("stories/credits: %+v", got)
	}
}

func TestRun_TierAndGrant(t *testing.T) {
	q := newTestQuota()
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, options{command: "tier", account: accountID, tier: "subscriber"}, q, &out); err != nil {
		t.Fatalf("tier: %v", err)
	}
	if !strings.Contains(out.String(), `"isPaid": true`) {
		t.Errorf("tier output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, options{command: "grant", account: accountID, credits: 50}, q, &out); err != nil {
		t.Fatalf("grant: %v", err)
	}
	var grant struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(out.Bytes(), &grant); err != nil {
		t.Fatal(err)
	}
	if grant.Balance != 250 {
		t.Errorf("balance after grant on subscriber: got %d, want 250", grant.Balance)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	q := newTestQuota()

	err := run(context.Background(), options{command: "grant", account: accountID, credits: 0}, q, io.Discard)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	err = run(context.Background(), options{command: "tier", account: accountID, tier: "gold"}, q, io.Discard)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRun_AudioCost(t *testing.T) {
	var out bytes.Buffer
	text := strings.TrimSpace(strings.Repeat("word ", 101))
	if err := run(context.Background(), options{command: "audio-cost", text: text}, newTestQuota(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got struct {
		Words   int   `json:"words"`
		Credits int64 `json:"credits"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Words != 101 || got.Credits != 2 {
		t.Errorf("audio cost: %+v", got)
	}
}

func TestRealMain_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := realMain([]string{"version"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "taleforge ") {
		t.Errorf("version output: %q", out.String())
	}
}

func TestRealMain_UsageExitCode(t *testing.T) {
	for _, args := range [][]string{
		{"status"},
		{"grant", "--account", accountID},
	} {
		if code := realMain(args, io.Discard, io.Discard); code != 2 {
			t.Errorf("%v: exit code = %d, want 2", args, code)
		}
	}
}
