// Package period computes quota reset boundaries.
// The chapter counter resets at UTC midnight, the credit grant on the first
// day of the UTC month. The two periods are independent.
package period

import (
	"fmt"
	"time"
)

// Kind is the reset cadence.
type Kind string

// Kind constants.
const (
	Daily   Kind = "day"
	Monthly Kind = "month"
)

// Next returns the first boundary of the given cadence strictly after now.
func Next(k Kind, now time.Time) time.Time {
	if k == Monthly {
		return NextMonthly(now)
	}
	return NextDaily(now)
}

// NextDaily returns the next UTC midnight after now.
func NextDaily(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

// NextMonthly returns the first instant of the next UTC month.
func NextMonthly(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// IsExpired reports whether now has reached resetAt.
func IsExpired(resetAt, now time.Time) bool {
	return !now.Before(resetAt)
}

// HoursUntilReset rounds the remaining time up to whole hours. Never negative.
func HoursUntilReset(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

// Describe renders the wait for end users: "Soon" or "in N hours".
func Describe(resetAt, now time.Time) string {
	h := HoursUntilReset(resetAt, now)
	switch h {
	case 0:
		return "Soon"
	case 1:
		return "in 1 hour"
	default:
		return fmt.Sprintf("in %d hours", h)
	}
}
