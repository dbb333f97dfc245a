package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"
	"emergency_alert_service/internal/domain/geo"
	idb "emergency_alert_service/internal/infra/database" // For ErrConflict

	"github.com/sirupsen/logrus"
)

// SweepResult is the aggregate outcome of one reconciler invocation. It is
// observability data only; correctness never depends on it.
type SweepResult struct {
	Processed int
	Failed    int
	Timestamp time.Time
}

// Reconciler is the stateless server-side catch-up pass. Each sweep scans the
// store for due alerts and runs the same decide/dispatch/update cycle as the
// device dispatcher, gated by the same last_sent rule, so the two may race but
// never duplicate sends beyond one extra per interval.
type Reconciler struct {
	repo      alert.Repository
	sender    dispatch.Sender
	locations geo.Provider // optional, nil disables per-tick refresh
	logger    *logrus.Entry
	now       func() time.Time
}

func NewReconciler(repo alert.Repository, sender dispatch.Sender, locations geo.Provider, logger *logrus.Entry) *Reconciler {
	return &Reconciler{
		repo:      repo,
		sender:    sender,
		locations: locations,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep processes every due alert once. Per-alert failures are logged and
// counted; they never abort the sweep for the remaining candidates.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	now := r.now()
	result := SweepResult{Timestamp: now}

	due, err := r.repo.ListDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list due alerts: %w", err)
	}
	if len(due) == 0 {
		r.logger.Debug("sweep found no due alerts")
		return result, nil
	}
	r.logger.Infof("sweep found %d due alert(s)", len(due))

	for _, a := range due {
		if err := r.process(ctx, a, now); err != nil {
			result.Failed++
			r.logger.Warnf("sweep failed for alert %s: %v", a.ID, err)
			continue
		}
		result.Processed++
	}

	r.logger.Infof("sweep completed: %d processed, %d failed", result.Processed, result.Failed)
	return result, nil
}

func (r *Reconciler) process(ctx context.Context, a *alert.Alert, now time.Time) error {
	switch alert.Decide(a, now) {
	case alert.MarkDone:
		r.logger.Infof("alert %s reached its cap or deadline, marking done", a.ID)
		if err := r.repo.UpdateStatus(ctx, a.ID, alert.StatusActive, alert.StatusDone); err != nil {
			if errors.Is(err, idb.ErrConflict) {
				return nil // the device got there first
			}
			return fmt.Errorf("failed to mark done: %w", err)
		}
		return nil

	case alert.Send:
		// Refresh the position when a source is configured; an error falls
		// back to the stored snapshot.
		var fresh *geo.Location
		loc := a.Location
		if r.locations != nil {
			if l, err := r.locations.CurrentLocation(ctx); err == nil {
				fresh, loc = l, l
			} else {
				r.logger.Debugf("location refresh failed for alert %s, using last known: %v", a.ID, err)
			}
		}

		msg := dispatch.Message{
			Subject: alert.Subject(a),
			Body:    alert.RenderMessage(a, loc, now),
		}
		if err := r.sender.Send(ctx, a.Contact, msg); err != nil {
			// No channel delivered; leave the tick uncredited and retry on
			// the next sweep.
			return fmt.Errorf("dispatch failed: %w", err)
		}

		if err := r.repo.RecordSend(ctx, a.ID, now, fresh, a.LastSent); err != nil {
			if errors.Is(err, idb.ErrConflict) {
				r.logger.Debugf("tick for alert %s already credited by the device dispatcher", a.ID)
				return nil
			}
			return fmt.Errorf("failed to record send: %w", err)
		}
		return nil

	default:
		return nil
	}
}
