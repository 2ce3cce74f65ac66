package account

// Unlimited is reported for remaining/max values of unmetered tiers.
const Unlimited int64 = -1

// TierValues holds one value per tier. For limits, a value <= 0 means unlimited.
type TierValues struct {
	Free       int64
	Subscriber int64
}

// For returns the value for the tier. Unknown tiers fall back to free.
func (v TierValues) For(t Tier) int64 {
	if t == TierSubscriber {
		return v.Subscriber
	}
	return v.Free
}

// LimitFor returns the tier limit, or Unlimited when the tier bypasses the gate.
// Subscribers always bypass.
func (v TierValues) LimitFor(t Tier) int64 {
	if t.IsPaid() {
		return Unlimited
	}
	l := v.For(t)
	if l <= 0 {
		return Unlimited
	}
	return l
}

// Policy is the per-tier quota table.
type Policy struct {
	DailyChapters  TierValues
	ActiveStories  TierValues
	MonthlyCredits TierValues
}

// Caps returns the policy with the subscriber chapter and story limits cleared,
// so stores never gate a paid tier whatever the table says.
func (p Policy) Caps() Policy {
	p.DailyChapters.Subscriber = 0
	p.ActiveStories.Subscriber = 0
	return p
}

// DefaultPolicy returns the production defaults: 4 chapters/day and 2 active
// stories for free accounts, no caps for subscribers.
func DefaultPolicy() Policy {
	return Policy{
		DailyChapters:  TierValues{Free: 4, Subscriber: 0},
		ActiveStories:  TierValues{Free: 2, Subscriber: 0},
		MonthlyCredits: TierValues{Free: 10, Subscriber: 200},
	}
}
