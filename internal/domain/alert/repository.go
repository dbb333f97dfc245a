package alert

import (
	"context"
	"time"

	"emergency_alert_service/internal/domain/geo"

	"github.com/google/uuid"
)

// Repository defines the operations for persisting and retrieving alerts.
// All mutations are single-row updates keyed by alert ID.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// GetActive returns the most recently created active alert.
	GetActive(ctx context.Context) (*Alert, error)
	// ListDue returns active alerts whose deadline has not passed and whose
	// last send is either absent or at least one interval old. The dedupe
	// window is each alert's own interval.
	ListDue(ctx context.Context, now time.Time) ([]*Alert, error)
	// RecordSend credits one dispatch: sets last_sent, increments total_sent
	// and refreshes the location snapshot when one is given. The update only
	// applies while the row's last_sent still equals expectedLastSent; a lost
	// race surfaces as a conflict error so the caller never credits a tick the
	// other dispatcher already took.
	RecordSend(ctx context.Context, id uuid.UUID, sentAt time.Time, loc *geo.Location, expectedLastSent *time.Time) error
	// UpdateStatus transitions the alert from one status to another. The
	// from-status guard keeps terminal states terminal.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}
