package app

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

// memRepo is an in-memory alert.Repository with the same conditional-update
// semantics as the postgres implementation.
type memRepo struct {
	mu     sync.Mutex
	order  []uuid.UUID
	alerts map[uuid.UUID]*alert.Alert
}

func newMemRepo(alerts ...*alert.Alert) *memRepo {
	r := &memRepo{alerts: make(map[uuid.UUID]*alert.Alert)}
	for _, a := range alerts {
		r.alerts[a.ID] = cloneAlert(a)
		r.order = append(r.order, a.ID)
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

func (r *memRepo) Create(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[a.ID] = cloneAlert(a)
	r.order = append(r.order, a.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, idb.ErrAlertNotFound
	}
	return cloneAlert(a), nil
}

func (r *memRepo) GetActive(_ context.Context) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if a := r.alerts[r.order[i]]; a.Status == alert.StatusActive {
			return cloneAlert(a), nil
		}
	}
	return nil, idb.ErrAlertNotFound
}

func (r *memRepo) ListDue(_ context.Context, now time.Time) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*alert.Alert
	for _, id := range r.order {
		a := r.alerts[id]
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

// fakeSender records sends and can fail per phone number or globally.
type fakeSender struct {
	mu        sync.Mutex
	sent      []dispatch.Message
	sentTo    []alert.Contact
	failAll   bool
	failPhone string
	afterSend func(contact alert.Contact)
}

func (s *fakeSender) Channel() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, contact alert.Contact, msg dispatch.Message) error {
	s.mu.Lock()
	failAll, failPhone, after := s.failAll, s.failPhone, s.afterSend
	s.mu.Unlock()

	if failAll || (failPhone != "" && contact.Phone == failPhone) {
		return context.DeadlineExceeded
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.sentTo = append(s.sentTo, contact)
	s.mu.Unlock()

	if after != nil {
		after(contact)
	}
	return nil
}

func (s *fakeSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeScheduler records DeviceScheduler calls.
type fakeScheduler struct {
	mu      sync.Mutex
	started []uuid.UUID
	stopped []uuid.UUID
}

func (s *fakeScheduler) Start(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, a.ID)
	return nil
}

func (s *fakeScheduler) Stop(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, id)
	return nil
}
