package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/geo"
	idb "emergency_alert_service/internal/infra/database" // For repository errors

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrActiveAlertExists is returned when activation is attempted while another
// alert is still active. The model allows many active alerts; this policy is
// the service's.
var ErrActiveAlertExists = errors.New("an active alert already exists")

// CampaignParams are the fixed per-deployment campaign settings.
type CampaignParams struct {
	UserName        string
	Contact         alert.Contact
	IntervalSeconds int
	Duration        time.Duration
}

// DeviceScheduler is the device-local dispatcher as seen by the service.
type DeviceScheduler interface {
	Start(ctx context.Context, a *alert.Alert) error
	Stop(id uuid.UUID) error
}

// AlertService defines the user-facing alert operations.
type AlertService interface {
	// Activate creates an active alert and begins dispatching immediately.
	Activate(ctx context.Context, loc *geo.Location) (*alert.Alert, error)
	// Stop ends an alert. It requires the configured stop code; a mismatch
	// fails with alert.ErrInvalidStopCode and leaves the record untouched.
	Stop(ctx context.Context, id uuid.UUID, stopCode string) error
	Active(ctx context.Context) (*alert.Alert, error)
	Get(ctx context.Context, id uuid.UUID) (*alert.Alert, error)
}

// AlertServiceImpl implements the AlertService interface.
type AlertServiceImpl struct {
	repo      alert.Repository
	scheduler DeviceScheduler
	params    CampaignParams
	stopCode  string
	logger    *logrus.Entry
}

func NewAlertService(
	repo alert.Repository,
	scheduler DeviceScheduler,
	params CampaignParams,
	stopCode string,
	logger *logrus.Entry,
) *AlertServiceImpl {
	return &AlertServiceImpl{
		repo:      repo,
		scheduler: scheduler,
		params:    params,
		stopCode:  stopCode,
		logger:    logger,
	}
}

func (s *AlertServiceImpl) Activate(ctx context.Context, loc *geo.Location) (*alert.Alert, error) {
	existing, err := s.repo.GetActive(ctx)
	if err != nil && err != idb.ErrAlertNotFound {
		return nil, fmt.Errorf("failed to check for an active alert: %w", err)
	}
	if existing != nil {
		return nil, ErrActiveAlertExists
	}

	a := alert.NewAlert(s.params.UserName, s.params.Contact, time.Now(), s.params.Duration, s.params.IntervalSeconds, loc)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	s.logger.Infof("alert %s activated, %d sends over %s every %ds",
		a.ID, a.MaxSends, s.params.Duration, a.IntervalSeconds)

	// The device dispatcher performs the immediate first dispatch and arms
	// the recurring schedule.
	if err := s.scheduler.Start(ctx, a); err != nil {
		s.logger.Warnf("device schedule failed to start for alert %s: %v", a.ID, err)
		// The record stays active: the reconciler still services it.
	}
	return a, nil
}

func (s *AlertServiceImpl) Stop(ctx context.Context, id uuid.UUID, stopCode string) error {
	if err := alert.CheckStopCode(s.stopCode, stopCode); err != nil {
		return err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if a.Status == alert.StatusActive {
		if err := s.repo.UpdateStatus(ctx, id, alert.StatusActive, alert.StatusStopped); err != nil {
			// A concurrent transition to done is fine; anything else is not.
			if !errors.Is(err, idb.ErrConflict) {
				return fmt.Errorf("failed to stop alert: %w", err)
			}
		}
	}

	if err := s.scheduler.Stop(id); err != nil {
		s.logger.Warnf("device schedule cleanup failed for alert %s: %v", id, err)
	}
	s.logger.Infof("alert %s stopped", id)
	return nil
}

func (s *AlertServiceImpl) Active(ctx context.Context) (*alert.Alert, error) {
	return s.repo.GetActive(ctx)
}

func (s *AlertServiceImpl) Get(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	return s.repo.GetByID(ctx, id)
}
