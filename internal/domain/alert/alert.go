package alert

import (
	"time"

	"emergency_alert_service/internal/domain/geo"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an alert campaign.
type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped" // user-initiated, terminal
	StatusDone    Status = "done"    // cap or deadline reached, terminal
)

// Contact holds the fixed emergency contact an alert dispatches to.
type Contact struct {
	Phone string
	Email string
}

// Alert represents one bounded, repeating emergency-notification campaign.
// Corresponds to the 'alerts' table.
type Alert struct {
	ID              uuid.UUID
	UserName        string
	Contact         Contact
	StartAt         time.Time
	EndAt           time.Time
	IntervalSeconds int
	Status          Status
	LastSent        *time.Time // nil until the first send is credited
	TotalSent       int
	MaxSends        int
	Location        *geo.Location // last known fix, refreshed per send when available
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAlert builds an active alert starting at startAt and running for the given
// duration. MaxSends is fixed here as ceil(duration/interval) and never
// recomputed afterwards.
func NewAlert(userName string, contact Contact, startAt time.Time, duration time.Duration, intervalSeconds int, loc *geo.Location) *Alert {
	interval := time.Duration(intervalSeconds) * time.Second
	maxSends := int((duration + interval - 1) / interval)
	return &Alert{
		ID:              uuid.New(),
		UserName:        userName,
		Contact:         contact,
		StartAt:         startAt,
		EndAt:           startAt.Add(duration),
		IntervalSeconds: intervalSeconds,
		Status:          StatusActive,
		TotalSent:       0,
		MaxSends:        maxSends,
		Location:        loc,
	}
}

// Interval returns the configured send interval as a duration.
func (a *Alert) Interval() time.Duration {
	return time.Duration(a.IntervalSeconds) * time.Second
}

// NextSendAt returns the time the next send becomes due, or nil if no send has
// happened yet or the next one would fall past the deadline.
func (a *Alert) NextSendAt() *time.Time {
	if a.LastSent == nil {
		return nil
	}
	next := a.LastSent.Add(a.Interval())
	if next.After(a.EndAt) {
		return nil
	}
	return &next
}

// RemainingSends returns how many sends are left before the cap.
func (a *Alert) RemainingSends() int {
	if rem := a.MaxSends - a.TotalSent; rem > 0 {
		return rem
	}
	return 0
}
