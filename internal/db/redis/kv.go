package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/taleforge/internal/db"
)

// IncrByWithTTL increments key by val and sets ttl only if the key has no
// expiry yet (EXPIRE NX). Both commands go out in one pipeline.
// Returns the value after the increment.
func (s *Store) IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	res := s.client.DoMulti(ctx,
		s.b().Incrby().Key(key).Increment(val).Build(),
		s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build(),
	)
	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if err := res[1].Error(); err != nil {
		return n, &db.Error{Op: db.OpExpire, Err: err}
	}
	return n, nil
}

// MGetInts reads integer counters in one round trip. Missing keys read as 0.
// In cluster mode all keys must share a hash slot.
func (s *Store) MGetInts(ctx context.Context, keys ...string) ([]int64, error) {
	msgs, err := s.do(ctx, s.b().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpMGet, Err: err}
	}

	out := make([]int64, len(msgs))
	for i := range msgs {
		if msgs[i].IsNil() {
			continue
		}
		n, err := msgs[i].AsInt64()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpMGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = n
	}
	return out, nil
}
