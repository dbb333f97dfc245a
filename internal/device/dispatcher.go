package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"
	idb "emergency_alert_service/internal/infra/database" // For ErrConflict

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher is the device-local recurring dispatch loop. It keeps exactly one
// single-shot timer in flight per schedule and re-arms only after the current
// dispatch attempt has finished, so cycles never overlap. It survives process
// restarts through the persisted ScheduleSnapshot and RecoverOnBoot.
type Dispatcher struct {
	repo            alert.Repository
	sender          dispatch.Sender
	snapshots       SnapshotStore
	clock           Clock
	logger          *logrus.Entry
	dispatchTimeout time.Duration

	mu   sync.Mutex
	loop *schedLoop
}

// schedLoop is one running timer loop: Armed -> Fired -> Armed|Stopped.
type schedLoop struct {
	alertID uuid.UUID
	stop    chan struct{}
	done    chan struct{}
	cancel  sync.Once
}

func (l *schedLoop) signalStop() {
	l.cancel.Do(func() { close(l.stop) })
}

func NewDispatcher(
	repo alert.Repository,
	sender dispatch.Sender,
	snapshots SnapshotStore,
	clock Clock,
	logger *logrus.Entry,
	dispatchTimeout time.Duration,
) *Dispatcher {
	if dispatchTimeout == 0 {
		dispatchTimeout = 30 * time.Second
	}
	return &Dispatcher{
		repo:            repo,
		sender:          sender,
		snapshots:       snapshots,
		clock:           clock,
		logger:          logger,
		dispatchTimeout: dispatchTimeout,
	}
}

// Start persists the schedule snapshot, performs one dispatch cycle
// immediately and arms the timer loop. Calling Start again for the same alert
// simply re-arms with the latest snapshot; a Start for a different alert
// supersedes the previous schedule.
func (d *Dispatcher) Start(ctx context.Context, a *alert.Alert) error {
	now := d.clock.Now()
	snap := &ScheduleSnapshot{
		AlertID:         a.ID,
		UserName:        a.UserName,
		Phone:           a.Contact.Phone,
		Email:           a.Contact.Email,
		Subject:         alert.Subject(a),
		Message:         alert.RenderMessage(a, a.Location, now),
		IntervalSeconds: a.IntervalSeconds,
		EndAt:           a.EndAt,
		StartTime:       now,
	}
	if err := d.snapshots.Write(snap); err != nil {
		return err
	}

	d.logger.Infof("starting schedule for alert %s, interval %s, until %s",
		a.ID, snap.Interval(), a.EndAt.Format(time.RFC3339))

	d.runCycle(ctx, snap)
	d.arm(snap)
	return nil
}

// Stop cancels the schedule for the given alert ID and clears the persisted
// snapshot. A mismatched ID is a no-op, which protects against a stale stop
// signal racing a newer schedule. Safe to call when nothing is running.
func (d *Dispatcher) Stop(id uuid.UUID) error {
	d.mu.Lock()
	l := d.loop
	d.mu.Unlock()

	if l != nil {
		if l.alertID != id {
			d.logger.Debugf("stop for alert %s ignored, current schedule is %s", id, l.alertID)
			return nil
		}
		l.signalStop()
		<-l.done
		d.detach(l)
		d.logger.Infof("stopped schedule for alert %s", id)
		return d.snapshots.Clear()
	}

	// No loop running, but a persisted snapshot may remain after a crash.
	snap, err := d.snapshots.Read()
	if err != nil {
		if errors.Is(err, ErrMalformedSnapshot) {
			return d.snapshots.Clear()
		}
		return err
	}
	if snap != nil && snap.AlertID == id {
		return d.snapshots.Clear()
	}
	return nil
}

// RecoverOnBoot resumes a persisted schedule after a process or host restart.
// An absent snapshot does nothing; a malformed or expired one is cleared and
// treated as abandoned. The resumed loop arms a full interval from now instead
// of dispatching immediately, so a reboot never grants an extra send; the
// server-side reconciler covers whatever the outage missed.
func (d *Dispatcher) RecoverOnBoot(ctx context.Context) error {
	snap, err := d.snapshots.Read()
	if err != nil {
		if errors.Is(err, ErrMalformedSnapshot) {
			d.logger.Warn("clearing malformed schedule snapshot")
			return d.snapshots.Clear()
		}
		return err
	}
	if snap == nil {
		return nil
	}
	if !d.clock.Now().Before(snap.EndAt) {
		d.logger.Infof("persisted schedule for alert %s already expired, clearing", snap.AlertID)
		return d.snapshots.Clear()
	}

	d.logger.Infof("resuming schedule for alert %s until %s", snap.AlertID, snap.EndAt.Format(time.RFC3339))
	d.arm(snap)
	return nil
}

// Running reports the alert ID of the currently armed schedule, if any.
func (d *Dispatcher) Running() (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loop == nil {
		return uuid.Nil, false
	}
	return d.loop.alertID, true
}

func (d *Dispatcher) arm(snap *ScheduleSnapshot) {
	l := &schedLoop{
		alertID: snap.AlertID,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	d.mu.Lock()
	old := d.loop
	d.loop = l
	d.mu.Unlock()

	if old != nil {
		old.signalStop()
		<-old.done
	}

	go d.run(l, snap)
}

func (d *Dispatcher) run(l *schedLoop, snap *ScheduleSnapshot) {
	defer close(l.done)

	for {
		t := d.clock.NewTimer(snap.Interval())
		select {
		case <-l.stop:
			t.Stop()
			return
		case now := <-t.C():
			if !now.Before(snap.EndAt) {
				d.logger.Infof("schedule for alert %s reached its deadline", snap.AlertID)
				d.markDoneBestEffort(snap.AlertID)
				d.finish(l)
				return
			}
			if !d.runCycle(context.Background(), snap) {
				d.finish(l)
				return
			}
		}
	}
}

// runCycle performs one dispatch cycle bounded by the dispatch timeout and
// reports whether the loop should re-arm.
func (d *Dispatcher) runCycle(ctx context.Context, snap *ScheduleSnapshot) bool {
	ctx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	now := d.clock.Now()
	a, err := d.repo.GetByID(ctx, snap.AlertID)
	if err != nil {
		// Store unreachable: the device is the last line of defense. Send from
		// the snapshot alone and skip the bookkeeping update.
		d.logger.Warnf("alert store unreachable, dispatching from snapshot: %v", err)
		contact := alert.Contact{Phone: snap.Phone, Email: snap.Email}
		msg := dispatch.Message{Subject: snap.Subject, Body: snap.Message}
		if sendErr := d.sender.Send(ctx, contact, msg); sendErr != nil {
			d.logger.Warnf("snapshot dispatch failed: %v", sendErr)
		}
		return true
	}

	switch alert.Decide(a, now) {
	case alert.MarkDone:
		if err := d.repo.UpdateStatus(ctx, a.ID, alert.StatusActive, alert.StatusDone); err != nil {
			d.logger.Warnf("failed to mark alert %s done: %v", a.ID, err)
		}
		return false
	case alert.Send:
		msg := dispatch.Message{
			Subject: alert.Subject(a),
			Body:    alert.RenderMessage(a, a.Location, now),
		}
		// A failed attempt never cancels the schedule; the next try is the
		// next regularly scheduled tick. An uncredited tick stays due, so the
		// failure is visible as total_sent lagging.
		if err := d.sender.Send(ctx, a.Contact, msg); err != nil {
			d.logger.Warnf("dispatch attempt for alert %s failed: %v", a.ID, err)
			return true
		}
		if err := d.repo.RecordSend(ctx, a.ID, now, nil, a.LastSent); err != nil {
			if errors.Is(err, idb.ErrConflict) {
				d.logger.Debugf("tick for alert %s already credited by the other dispatcher", a.ID)
			} else {
				d.logger.Warnf("failed to record send for alert %s: %v", a.ID, err)
			}
		}
		return true
	default:
		// Re-arm only while the record is still active.
		return a.Status == alert.StatusActive
	}
}

// markDoneBestEffort closes the record when the deadline passes. Failure is
// tolerable, the reconciler will mark it done on its next sweep.
func (d *Dispatcher) markDoneBestEffort(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), d.dispatchTimeout)
	defer cancel()
	if err := d.repo.UpdateStatus(ctx, id, alert.StatusActive, alert.StatusDone); err != nil {
		d.logger.Debugf("could not mark alert %s done: %v", id, err)
	}
}

// finish clears the snapshot and detaches the loop once the schedule is over.
func (d *Dispatcher) finish(l *schedLoop) {
	if err := d.snapshots.Clear(); err != nil {
		d.logger.Warnf("failed to clear schedule snapshot: %v", err)
	}
	d.detach(l)
}

func (d *Dispatcher) detach(l *schedLoop) {
	d.mu.Lock()
	if d.loop == l {
		d.loop = nil
	}
	d.mu.Unlock()
}
