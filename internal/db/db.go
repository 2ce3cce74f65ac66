package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	Scripter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// KVStore provides integer counters with expiry.
type KVStore interface {
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
	MGetInts(ctx context.Context, keys ...string) ([]int64, error)
}

// Scripter runs server-side scripts atomically.
// The script must return an array of integers.
type Scripter interface {
	EvalInts(ctx context.Context, script string, keys, args []string) ([]int64, error)
}
