package taleforge

import "time"

// Tier is the account classification controlling whether quota gates apply.
type Tier string

// Tier constants.
const (
	TierFree       Tier = "free"
	TierSubscriber Tier = "subscriber"
)

// Operation is a metered generation operation.
type Operation string

// Operation constants. Unknown operations cost one credit.
const (
	OperationStory   Operation = "story"
	OperationSegment Operation = "segment"
	OperationImage   Operation = "image"
	OperationAudio   Operation = "audio"
	OperationVideo   Operation = "video"
)

// Status is a read-only snapshot of the daily chapter quota.
// Limit and Remaining are -1 for unlimited tiers.
type Status struct {
	AccountID       string
	Tier            Tier
	IsPaid          bool
	Used            int64
	Limit           int64
	Remaining       int64
	State           string // available, exhausted, unlimited
	ResetAt         time.Time
	HoursUntilReset int
}

// ConsumeResult is the outcome of a chapter consumption attempt.
// A denial is a result with Success=false, not an error.
type ConsumeResult struct {
	Success   bool
	Used      int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	Error     string
}

// StoriesCap reports whether the account may start another story.
type StoriesCap struct {
	ActiveCount  int64
	MaxAllowed   int64 // -1 = unlimited
	CanCreateNew bool
}

// StoryResult is the outcome of opening a story.
type StoryResult struct {
	Success bool
	Cap     StoriesCap
	Error   string
}

// CreditResult is the outcome of a metered charge.
type CreditResult struct {
	Success   bool
	Operation Operation
	Cost      int64
	Balance   int64
	ResetAt   time.Time
	Error     string
}

// CreditBalance is the effective balance and the next monthly grant.
type CreditBalance struct {
	Tier         Tier
	Balance      int64
	MonthlyGrant int64
	ResetAt      time.Time
	// Spent is nil unless WithSpendLedger is set.
	Spent *Spent
}

// Spent is the credits debited in the current UTC day and month.
type Spent struct {
	Today     int64
	ThisMonth int64
}

// AudioCost is the narration price breakdown.
type AudioCost struct {
	Words         int
	Credits       int64
	BreakdownText string
}
