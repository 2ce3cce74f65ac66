package account

import "time"

// ConsumeRequest is a conditional increment of the daily counter.
// Stores reset the counter to 0 and move the boundary to NextReset when
// Now has reached the stored boundary, then add Amount only if the tier
// limit allows it. Both steps are one atomic operation.
type ConsumeRequest struct {
	AccountID string
	Amount    int64
	Limits    TierValues
	Now       time.Time
	NextReset time.Time
}

// ConsumeOutcome is the post-operation counter state.
type ConsumeOutcome struct {
	Admitted bool
	Tier     Tier
	Used     int64
	ResetAt  time.Time
}

// DebitRequest is a conditional subtraction from the credit balance.
// On monthly rollover the balance is set to the tier grant first.
type DebitRequest struct {
	AccountID string
	Cost      int64
	Grants    TierValues
	Now       time.Time
	NextReset time.Time
}

// DebitOutcome is the post-operation balance.
type DebitOutcome struct {
	Debited bool
	Tier    Tier
	Balance int64
	ResetAt time.Time
}

// StoryRequest is a conditional increment of the active-stories count.
type StoryRequest struct {
	AccountID string
	Limits    TierValues
}

// StoryOutcome is the post-operation active-stories count.
type StoryOutcome struct {
	Admitted bool
	Tier     Tier
	Active   int64
}

// GrantRequest adds purchased or admin credits on top of the effective balance.
type GrantRequest struct {
	AccountID string
	Credits   int64
	Grants    TierValues
	Now       time.Time
	NextReset time.Time
}
