package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/taleforge/internal/db"
)

// EvalInts runs a Lua script via EVALSHA (falling back to EVAL on NOSCRIPT)
// and returns its integer array reply. The script body executes atomically.
func (s *Store) EvalInts(ctx context.Context, script string, keys, args []string) ([]int64, error) {
	vals, err := s.lua(script).Exec(ctx, s.client, keys, args).AsIntSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpEval, Err: err}
	}
	return vals, nil
}

// lua returns the cached script handle so the SHA1 is computed once per source.
func (s *Store) lua(src string) *rueidis.Lua {
	if v, ok := s.scripts.Load(src); ok {
		return v.(*rueidis.Lua)
	}
	v, _ := s.scripts.LoadOrStore(src, rueidis.NewLuaScript(src))
	return v.(*rueidis.Lua)
}
