package device

import (
	"context"
	"sync"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"
	"emergency_alert_service/internal/domain/geo"
	idb "emergency_alert_service/internal/infra/database"

	"github.com/google/uuid"
)

// manualClock drives the dispatch loop deterministically: timers only fire
// when the test advances the clock past their due time.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, ch: make(chan time.Time, 1), due: c.now.Add(d)}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !c.now.Before(t.due) {
			t.fired = true
			t.ch <- c.now
		}
	}
}

// armed counts timers that are pending: created, not fired, not stopped.
func (c *manualClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type manualTimer struct {
	clock   *manualClock
	ch      chan time.Time
	due     time.Time
	stopped bool
	fired   bool
}

func (t *manualTimer) C() <-chan time.Time { return t.ch }

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// memRepo mirrors the postgres repository's conditional-update semantics.
type memRepo struct {
	mu      sync.Mutex
	alerts  map[uuid.UUID]*alert.Alert
	offline bool
}

func newMemRepo(alerts ...*alert.Alert) *memRepo {
	r := &memRepo{alerts: make(map[uuid.UUID]*alert.Alert)}
	for _, a := range alerts {
		r.alerts[a.ID] = cloneAlert(a)
	}
	return r
}

func cloneAlert(a *alert.Alert) *alert.Alert {
	c := *a
	if a.LastSent != nil {
		t := *a.LastSent
		c.LastSent = &t
	}
	if a.Location != nil {
		l := *a.Location
		c.Location = &l
	}
	return &c
}

func (r *memRepo) setOffline(offline bool) {
	r.mu.Lock()
	r.offline = offline
	r.mu.Unlock()
}

func (r *memRepo) Create(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[a.ID] = cloneAlert(a)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return nil, context.DeadlineExceeded
	}
	a, ok := r.alerts[id]
	if !ok {
		return nil, idb.ErrAlertNotFound
	}
	return cloneAlert(a), nil
}

func (r *memRepo) GetActive(_ context.Context) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.Status == alert.StatusActive {
			return cloneAlert(a), nil
		}
	}
	return nil, idb.ErrAlertNotFound
}

func (r *memRepo) ListDue(_ context.Context, now time.Time) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*alert.Alert
	for _, a := range r.alerts {
		if a.Status != alert.StatusActive || !a.EndAt.After(now) {
			continue
		}
		if a.LastSent == nil || now.Sub(*a.LastSent) >= a.Interval() {
			due = append(due, cloneAlert(a))
		}
	}
	return due, nil
}

func (r *memRepo) RecordSend(_ context.Context, id uuid.UUID, sentAt time.Time, loc *geo.Location, expectedLastSent *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return context.DeadlineExceeded
	}
	a, ok := r.alerts[id]
	if !ok {
		return idb.ErrAlertNotFound
	}
	if a.Status != alert.StatusActive || !sameTime(a.LastSent, expectedLastSent) {
		return idb.ErrConflict
	}
	t := sentAt
	a.LastSent = &t
	a.TotalSent++
	if loc != nil {
		l := *loc
		a.Location = &l
	}
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to alert.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return idb.ErrAlertNotFound
	}
	if a.Status != from {
		return idb.ErrConflict
	}
	a.Status = to
	return nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// fakeSender records dispatches and optionally fails them all.
type fakeSender struct {
	mu      sync.Mutex
	sent    []dispatch.Message
	failAll bool
}

func (s *fakeSender) Channel() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, _ alert.Contact, msg dispatch.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return context.DeadlineExceeded
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) setFailAll(fail bool) {
	s.mu.Lock()
	s.failAll = fail
	s.mu.Unlock()
}

func (s *fakeSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
