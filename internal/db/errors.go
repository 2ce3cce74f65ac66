package db

// Op constants map to Valkey/Redis command names for error context.
const (
	OpHGetAll = "HGETALL"
	OpHSet    = "HSET"
	OpMGet    = "MGET"
	OpIncrBy  = "INCRBY"
	OpExpire  = "EXPIRE"
	OpEval    = "EVALSHA"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
