// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/config"
	dbPostgres "github.com/kailas-cloud/taleforge/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/taleforge/internal/db/redis"
	repoacc "github.com/kailas-cloud/taleforge/internal/repository/account"
	"github.com/kailas-cloud/taleforge/internal/repository/ledger"
	"github.com/kailas-cloud/taleforge/internal/usecase/credits"
	"github.com/kailas-cloud/taleforge/internal/usecase/gate"
	healthuc "github.com/kailas-cloud/taleforge/internal/usecase/health"
	"github.com/kailas-cloud/taleforge/internal/usecase/quota"
	"github.com/kailas-cloud/taleforge/internal/version"
)

// App holds the wired services.
type App struct {
	Quota   *quota.Service
	Health  *healthuc.Service
	closers []func()
}

// Close releases database connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// New opens the configured account store and builds the quota facade on top of it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	var (
		store     quota.AccountStore
		spendLog  *ledger.Store
		ledgerPng healthuc.Pinger
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		store = repoacc.NewMemory()

	case config.DriverRedis, config.DriverValkey:
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Username:   cfg.Database.Username,
			Password:   cfg.Database.Password,
			DB:         cfg.Database.DB,
			ClientName: version.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		a.closers = append(a.closers, rs.Close)

		if err := rs.WaitForReady(ctx, readiness); err != nil {
			a.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		store = repoacc.NewRedis(rs, cfg.Storage.KeyPrefix)

		if cfg.Ledger.Enabled {
			spendLog = ledger.New(rs, cfg.Storage.KeyPrefix,
				time.Duration(cfg.Ledger.DailyTTLHours)*time.Hour,
				time.Duration(cfg.Ledger.MonthlyTTLDays)*24*time.Hour,
			)
			ledgerPng = rs
		}

	case config.DriverPostgres:
		pool, err := dbPostgres.NewPool(ctx, dbPostgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := pool.WaitForReady(ctx, readiness); err != nil {
			a.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		pg := repoacc.NewPostgres(pool, repoacc.WithTablePrefix(cfg.Database.TablePrefix))
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = pg

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	store = quota.NewInstrumentedStore(store, cfg.Database.Driver, logger)
	policy := cfg.Policy()

	creditsSvc := credits.New(store, policy, logger)
	// Assign only a non-nil ledger: a typed nil pointer in the interface is not nil.
	if spendLog != nil {
		creditsSvc.WithLedger(spendLog)
	}

	a.Quota = quota.New(store, gate.New(store, policy, logger), creditsSvc, policy, logger)
	a.Health = healthuc.New(store).WithCheck("ledger", ledgerPng)

	logger.Info("Account store ready",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("ledger", spendLog != nil),
	)
	return a, nil
}
