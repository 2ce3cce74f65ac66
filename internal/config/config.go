package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverPostgres = "postgres"
)

// Config holds the taleforge service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Quota    QuotaConfig    `yaml:"quota"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// AdminAPIKeys guard tier changes and credit grants; when empty, any API key may call them.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	AdminAPIKeys []string `yaml:"admin_api_keys"`
}

// CORSConfig holds browser access settings for the web front-end.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds account store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey, postgres (default: memory)
	Addrs            []string `yaml:"addrs"`  // redis/valkey: host:port or redis:// URL
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DSN              string   `yaml:"dsn"` // postgres
	MaxConns         int32    `yaml:"max_conns"`
	TablePrefix      string   `yaml:"table_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TierLimits holds one value per tier. Nil fields take the built-in default.
type TierLimits struct {
	Free       *int64 `yaml:"free"`
	Subscriber *int64 `yaml:"subscriber"`
}

// QuotaConfig holds the per-tier quota table. 0 = unlimited for caps.
type QuotaConfig struct {
	DailyChapters  TierLimits `yaml:"daily_chapters"`
	ActiveStories  TierLimits `yaml:"active_stories"`
	MonthlyCredits TierLimits `yaml:"monthly_credits"`
}

// LedgerConfig holds the credit spend ledger settings (redis/valkey only).
type LedgerConfig struct {
	Enabled        bool `yaml:"enabled"`
	DailyTTLHours  int  `yaml:"daily_ttl_hours"`
	MonthlyTTLDays int  `yaml:"monthly_ttl_days"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads variables from .env files into the process environment.
// Existing variables win. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.TablePrefix == "" {
		c.Database.TablePrefix = "taleforge_"
	}
	if c.Ledger.DailyTTLHours <= 0 {
		c.Ledger.DailyTTLHours = 48
	}
	if c.Ledger.MonthlyTTLDays <= 0 {
		c.Ledger.MonthlyTTLDays = 62
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "taleforge:"
	}

	def := domacc.DefaultPolicy()
	c.Quota.DailyChapters.fill(def.DailyChapters)
	c.Quota.ActiveStories.fill(def.ActiveStories)
	c.Quota.MonthlyCredits.fill(def.MonthlyCredits)
}

func (t *TierLimits) fill(def domacc.TierValues) {
	if t.Free == nil {
		v := def.Free
		t.Free = &v
	}
	if t.Subscriber == nil {
		v := def.Subscriber
		t.Subscriber = &v
	}
}

func (t TierLimits) values() domacc.TierValues {
	var v domacc.TierValues
	if t.Free != nil {
		v.Free = *t.Free
	}
	if t.Subscriber != nil {
		v.Subscriber = *t.Subscriber
	}
	return v
}

// Policy returns the quota table as a domain policy. Call after ApplyDefaults.
func (c *Config) Policy() domacc.Policy {
	return domacc.Policy{
		DailyChapters:  c.Quota.DailyChapters.values(),
		ActiveStories:  c.Quota.ActiveStories.values(),
		MonthlyCredits: c.Quota.MonthlyCredits.values(),
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateStore()
}

// ValidateStore checks the database, ledger and quota sections.
// Embedded callers without an HTTP listener use it instead of Validate.
func (c *Config) ValidateStore() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of memory, redis, valkey, postgres, got %q", c.Database.Driver)
	}

	if c.Ledger.Enabled && !c.usesRedis() {
		return fmt.Errorf("ledger.enabled requires a redis or valkey database driver, got %q", c.Database.Driver)
	}

	limits := map[string]TierLimits{
		"daily_chapters":  c.Quota.DailyChapters,
		"active_stories":  c.Quota.ActiveStories,
		"monthly_credits": c.Quota.MonthlyCredits,
	}
	for name, l := range limits {
		v := l.values()
		if v.Free < 0 || v.Subscriber < 0 {
			return fmt.Errorf("quota.%s values must be >= 0, got free=%d subscriber=%d", name, v.Free, v.Subscriber)
		}
	}
	for name, l := range map[string]TierLimits{
		"daily_chapters": c.Quota.DailyChapters,
		"active_stories": c.Quota.ActiveStories,
	} {
		if v := l.values(); v.Subscriber != 0 {
			return fmt.Errorf("quota.%s.subscriber must be 0 (subscribers are not capped), got %d", name, v.Subscriber)
		}
	}
	return nil
}

func (c *Config) usesRedis() bool {
	return c.Database.Driver == DriverRedis || c.Database.Driver == DriverValkey
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
