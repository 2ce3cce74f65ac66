package account

import (
	"context"
	"testing"
)

const testAccountID = "6f1c2f4e-9a3b-4c55-8d7e-2b1a0c9d8e7f"

// mockStore implements the Redis consumer interface for tests.
type mockStore struct {
	pingFn     func(ctx context.Context) error
	hgetAllFn  func(ctx context.Context, key string) (map[string]string, error)
	hsetFn     func(ctx context.Context, key string, fields map[string]string) error
	evalIntsFn func(ctx context.Context, script string, keys, args []string) ([]int64, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) EvalInts(ctx context.Context, script string, keys, args []string) ([]int64, error) {
	if m.evalIntsFn != nil {
		return m.evalIntsFn(ctx, script, keys, args)
	}
	return nil, nil
}

func newTestRedisStore(t *testing.T) (*RedisStore, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return NewRedis(ms, ""), ms
}
