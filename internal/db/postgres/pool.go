// Package postgres opens the pgx connection pool used by the SQL account store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds connection parameters for a PostgreSQL pool.
type Config struct {
	DSN      string
	MaxConns int32
}

// Pool wraps pgxpool.Pool with readiness polling.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a pgx pool. Connections are established lazily.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Ping checks connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (p *Pool) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
