package config

import (
	"os"
	"path/filepath"
	"testing"
)

func int64Ptr(v int64) *int64 { return &v }

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 0},
		Database: DatabaseConfig{Driver: DriverMemory},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		wantErr bool
	}{
		{"memory", DatabaseConfig{Driver: DriverMemory}, false},
		{"redis with addrs", DatabaseConfig{Driver: DriverRedis, Addrs: []string{"localhost:6379"}}, false},
		{"valkey with addrs", DatabaseConfig{Driver: DriverValkey, Addrs: []string{"localhost:6379"}}, false},
		{"redis without addrs", DatabaseConfig{Driver: DriverRedis}, true},
		{"valkey without addrs", DatabaseConfig{Driver: DriverValkey, Addrs: []string{}}, true},
		{"postgres with dsn", DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://localhost/taleforge"}, false},
		{"postgres without dsn", DatabaseConfig{Driver: DriverPostgres}, true},
		{"unknown", DatabaseConfig{Driver: "mongo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{HTTP: HTTPConfig{Port: 8080}, Database: tt.db}
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_LedgerRequiresRedis(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://localhost/taleforge"},
		Ledger:   LedgerConfig{Enabled: true},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for ledger on postgres")
	}

	expected := `ledger.enabled requires a redis or valkey database driver, got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_NegativeQuota(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: DriverMemory},
		Quota: QuotaConfig{
			MonthlyCredits: TierLimits{Free: int64Ptr(-1)},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for negative quota")
	}

	expected := "quota.monthly_credits values must be >= 0, got free=-1 subscriber=0"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_SubscriberCapRejected(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: DriverMemory},
		Quota: QuotaConfig{
			DailyChapters: TierLimits{Free: int64Ptr(4), Subscriber: int64Ptr(2)},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for a subscriber chapter limit")
	}
	expected := "quota.daily_chapters.subscriber must be 0 (subscribers are not capped), got 2"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}

	cfg.Quota.DailyChapters.Subscriber = int64Ptr(0)
	cfg.Quota.ActiveStories = TierLimits{Subscriber: int64Ptr(1)}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for a subscriber story cap")
	}

	cfg.Quota.ActiveStories = TierLimits{}
	cfg.Quota.MonthlyCredits = TierLimits{Subscriber: int64Ptr(500)}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("subscriber credit grant must stay configurable: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected Driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Database.TablePrefix != "taleforge_" {
		t.Errorf("expected TablePrefix='taleforge_', got %q", cfg.Database.TablePrefix)
	}
	if cfg.Ledger.DailyTTLHours != 48 {
		t.Errorf("expected DailyTTLHours=48, got %d", cfg.Ledger.DailyTTLHours)
	}
	if cfg.Ledger.MonthlyTTLDays != 62 {
		t.Errorf("expected MonthlyTTLDays=62, got %d", cfg.Ledger.MonthlyTTLDays)
	}
	if cfg.Storage.KeyPrefix != "taleforge:" {
		t.Errorf("expected KeyPrefix='taleforge:', got %q", cfg.Storage.KeyPrefix)
	}

	p := cfg.Policy()
	if p.DailyChapters.Free != 4 || p.DailyChapters.Subscriber != 0 {
		t.Errorf("unexpected daily chapters: %+v", p.DailyChapters)
	}
	if p.ActiveStories.Free != 2 || p.ActiveStories.Subscriber != 0 {
		t.Errorf("unexpected active stories: %+v", p.ActiveStories)
	}
	if p.MonthlyCredits.Free != 10 || p.MonthlyCredits.Subscriber != 200 {
		t.Errorf("unexpected monthly credits: %+v", p.MonthlyCredits)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "Redis", ReadinessTimeout: 15},
		Quota: QuotaConfig{
			DailyChapters: TierLimits{Free: int64Ptr(6)},
		},
		Storage: StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverRedis {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}

	p := cfg.Policy()
	if p.DailyChapters.Free != 6 {
		t.Errorf("expected DailyChapters.Free=6, got %d", p.DailyChapters.Free)
	}
	if p.DailyChapters.Subscriber != 0 {
		t.Errorf("expected DailyChapters.Subscriber=0, got %d", p.DailyChapters.Subscriber)
	}
}

func TestApplyDefaults_ExplicitZeroKept(t *testing.T) {
	cfg := Config{
		Quota: QuotaConfig{
			ActiveStories: TierLimits{Free: int64Ptr(0)},
		},
	}
	cfg.ApplyDefaults()

	if got := cfg.Policy().ActiveStories.Free; got != 0 {
		t.Errorf("expected explicit zero to survive defaults, got %d", got)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TALEFORGE_TEST_PORT", "9191")
	t.Setenv("TALEFORGE_TEST_DSN", "")

	data := []byte(`
http:
  port: ${TALEFORGE_TEST_PORT}
database:
  driver: postgres
  dsn: ${TALEFORGE_TEST_DSN:-postgres://localhost:5432/taleforge}
quota:
  daily_chapters:
    free: 3
auth:
  api_keys: ["k1"]
  admin_api_keys: ["admin"]
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.DSN != "postgres://localhost:5432/taleforge" {
		t.Errorf("expected default dsn, got %q", cfg.Database.DSN)
	}
	if got := cfg.Policy().DailyChapters.Free; got != 3 {
		t.Errorf("expected daily chapters free=3, got %d", got)
	}
	if got := cfg.Policy().MonthlyCredits.Subscriber; got != 200 {
		t.Errorf("expected monthly credits subscriber=200, got %d", got)
	}
	if len(cfg.Auth.AdminAPIKeys) != 1 || cfg.Auth.AdminAPIKeys[0] != "admin" {
		t.Errorf("unexpected admin keys: %v", cfg.Auth.AdminAPIKeys)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected YAML error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\ndatabase:\n  driver: redis\n")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "TALEFORGE_TEST_DOTENV"
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("expected %s=from-file, got %q", key, got)
	}
}

func TestLoadDotEnv_ExistingWins(t *testing.T) {
	const key = "TALEFORGE_TEST_DOTENV_KEEP"
	t.Setenv(key, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Errorf("expected %s=from-env, got %q", key, got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}
