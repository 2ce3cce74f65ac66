package budget

import "time"

// State is the gate state of a period counter.
type State string

// State constants.
const (
	StateAvailable State = "available"
	StateExhausted State = "exhausted"
	StateUnlimited State = "unlimited"
)

// Budget is a snapshot of one period counter against its limit.
type Budget struct {
	used     int64
	limit    int64 // -1 = unlimited
	resetsAt time.Time
}

// New creates a Budget snapshot. limit < 0 means unlimited.
func New(used, limit int64, resetsAt time.Time) Budget {
	if limit < 0 {
		limit = -1
	}
	return Budget{used: used, limit: limit, resetsAt: resetsAt}
}

// Used returns units consumed in the current period.
func (b Budget) Used() int64 { return b.used }

// Limit returns the period cap (-1 if unlimited).
func (b Budget) Limit() int64 { return b.limit }

// IsUnlimited reports whether the counter is not capped.
func (b Budget) IsUnlimited() bool { return b.limit < 0 }

// Remaining returns units left (-1 if unlimited, never below 0 otherwise).
func (b Budget) Remaining() int64 {
	if b.IsUnlimited() {
		return -1
	}
	if r := b.limit - b.used; r > 0 {
		return r
	}
	return 0
}

// State returns available, exhausted or unlimited.
func (b Budget) State() State {
	switch {
	case b.IsUnlimited():
		return StateUnlimited
	case b.used >= b.limit:
		return StateExhausted
	default:
		return StateAvailable
	}
}

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.State() == StateExhausted }

// Admits reports whether amount more units fit in the period.
func (b Budget) Admits(amount int64) bool {
	return b.IsUnlimited() || b.used+amount <= b.limit
}

// ResetsAt returns the next period boundary.
func (b Budget) ResetsAt() time.Time { return b.resetsAt }
