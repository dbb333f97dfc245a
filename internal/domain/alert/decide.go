package alert

import "time"

// Decision is the outcome of evaluating an alert against the current time.
type Decision int

const (
	// Skip means the alert needs no action right now.
	Skip Decision = iota
	// Send means a dispatch attempt is due.
	Send
	// MarkDone means the alert reached its cap or deadline and must be closed.
	MarkDone
)

func (d Decision) String() string {
	switch d {
	case Send:
		return "send"
	case MarkDone:
		return "mark_done"
	default:
		return "skip"
	}
}

// DueSlack allows a timer that fires marginally early to still count its tick.
const DueSlack = 5 * time.Second

// Decide is the shared gating rule for both the device dispatcher and the
// server-side reconciler. It is a pure function of the alert snapshot and now.
func Decide(a *Alert, now time.Time) Decision {
	if a.Status != StatusActive {
		return Skip
	}
	if a.TotalSent >= a.MaxSends || !now.Before(a.EndAt) {
		return MarkDone
	}
	if a.LastSent == nil {
		return Send
	}
	if now.Sub(*a.LastSent) >= a.Interval()-DueSlack {
		return Send
	}
	return Skip
}
