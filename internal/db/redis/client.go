package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/taleforge/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
// An address may be a plain host:port or a redis:// / rediss:// URL;
// a URL carries its own credentials and DB and must be the only address.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	ClientName string
}

// Store implements db.Store via rueidis for Redis and Valkey.
type Store struct {
	client  rueidis.Client
	scripts sync.Map // script source -> *rueidis.Lua
}

// NewStore creates a Redis/Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	opt, err := clientOption(cfg)
	if err != nil {
		return nil, err
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

func clientOption(cfg Config) (rueidis.ClientOption, error) {
	if len(cfg.Addrs) == 0 {
		return rueidis.ClientOption{}, fmt.Errorf("addrs is required")
	}

	var opt rueidis.ClientOption
	if isURL(cfg.Addrs[0]) {
		if len(cfg.Addrs) > 1 {
			return opt, fmt.Errorf("a redis URL must be the only address, got %d", len(cfg.Addrs))
		}
		parsed, err := rueidis.ParseURL(cfg.Addrs[0])
		if err != nil {
			return opt, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = rueidis.ClientOption{
			InitAddress: cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			SelectDB:    cfg.DB,
		}
	}

	// Counters must always be read from the server.
	opt.DisableCache = true
	opt.ClientName = cfg.ClientName
	return opt, nil
}

func isURL(addr string) bool {
	return strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") ||
		strings.HasPrefix(addr, "unix://")
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings immediately, then backs off from 50ms up to 1s until the
// store responds or timeout expires. The last ping error is reported on timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := 50 * time.Millisecond
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("timeout waiting for database: %w (last error: %v)", ctx.Err(), err)
		case <-t.C:
		}
		delay = min(delay*2, time.Second)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
