package taleforge

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/taleforge/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	db     config.DatabaseConfig
	quota  config.QuotaConfig
	ledger bool
	prefix string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps accounts in process memory. Counters are lost on exit.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.db = config.DatabaseConfig{Driver: config.DriverMemory}
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = config.DatabaseConfig{Driver: config.DriverRedis, Addrs: []string{addr}, Password: password}
	})
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = config.DatabaseConfig{Driver: config.DriverValkey, Addrs: []string{addr}, Password: password}
	})
}

// WithPostgres configures the client to use a PostgreSQL database.
// The accounts table is created on first connect.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = config.DatabaseConfig{Driver: config.DriverPostgres, DSN: dsn}
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default: "taleforge:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.prefix = prefix
	})
}

// WithSpendLedger records daily and monthly credit spend (Redis/Valkey only).
func WithSpendLedger() Option {
	return optionFunc(func(c *clientConfig) {
		c.ledger = true
	})
}

// WithDailyChapters sets the free-tier daily chapter limit. Default: 4.
func WithDailyChapters(free int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.quota.DailyChapters.Free = &free
	})
}

// WithActiveStories sets the free-tier active story cap. Default: 2.
func WithActiveStories(free int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.quota.ActiveStories.Free = &free
	})
}

// WithMonthlyCredits sets the monthly credit grants. Defaults: 10 free, 200 subscriber.
func WithMonthlyCredits(free, subscriber int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.quota.MonthlyCredits.Free = &free
		c.quota.MonthlyCredits.Subscriber = &subscriber
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// toConfig maps options onto the service configuration.
func (c *clientConfig) toConfig() config.Config {
	cfg := config.Config{
		Database: c.db,
		Quota:    c.quota,
		Ledger:   config.LedgerConfig{Enabled: c.ledger},
		Storage:  config.StorageConfig{KeyPrefix: c.prefix},
	}
	cfg.ApplyDefaults()
	return cfg
}
