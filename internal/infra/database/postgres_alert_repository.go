package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/geo"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrAlertNotFound = fmt.Errorf("alert not found")

// ErrConflict means a conditional update lost the race against the other
// dispatcher: the row's last_sent moved past the caller's observed value.
var ErrConflict = fmt.Errorf("alert update conflict")

type PostgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

const alertColumns = `id, user_name, phone, email, start_at, end_at, interval_seconds, status,
               last_sent, total_sent, max_sends, latitude, longitude, accuracy, location_timestamp,
               created_at, updated_at`

func (r *PostgresAlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	query := `INSERT INTO alerts (id, user_name, phone, email, start_at, end_at, interval_seconds, status,
               total_sent, max_sends, latitude, longitude, accuracy, location_timestamp)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
               RETURNING created_at, updated_at`

	var lat, lng, acc *float64
	var locTS *time.Time
	if a.Location != nil {
		lat, lng, acc = &a.Location.Latitude, &a.Location.Longitude, &a.Location.Accuracy
		locTS = &a.Location.Timestamp
	}

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.UserName, a.Contact.Phone, a.Contact.Email, a.StartAt, a.EndAt, a.IntervalSeconds,
		a.Status, a.TotalSent, a.MaxSends, lat, lng, acc, locTS,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating alert: %w", err)
	}
	return nil
}

func (r *PostgresAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("error getting alert by ID: %w", err)
	}
	return a, nil
}

func (r *PostgresAlertRepository) GetActive(ctx context.Context) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
               WHERE status = $1 ORDER BY created_at DESC LIMIT 1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, alert.StatusActive))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("error getting active alert: %w", err)
	}
	return a, nil
}

func (r *PostgresAlertRepository) ListDue(ctx context.Context, now time.Time) ([]*alert.Alert, error) {
	// The dedupe window is each alert's own interval, so a row recently
	// serviced by the device dispatcher does not show up here.
	query := `SELECT ` + alertColumns + ` FROM alerts
               WHERE status = $1
                 AND end_at > $2
                 AND (last_sent IS NULL OR last_sent <= $2 - make_interval(secs => interval_seconds))
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, alert.StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*alert.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

func (r *PostgresAlertRepository) RecordSend(ctx context.Context, id uuid.UUID, sentAt time.Time, loc *geo.Location, expectedLastSent *time.Time) error {
	// Conditional single-row update: only credit the tick if last_sent has not
	// been advanced by the other dispatcher since we read the row.
	query := `UPDATE alerts
               SET last_sent = $2,
                   total_sent = total_sent + 1,
                   latitude = COALESCE($3, latitude),
                   longitude = COALESCE($4, longitude),
                   accuracy = COALESCE($5, accuracy),
                   location_timestamp = COALESCE($6, location_timestamp),
                   updated_at = NOW()
               WHERE id = $1
                 AND status = $7
                 AND ((last_sent IS NULL AND $8::timestamptz IS NULL) OR last_sent = $8)`

	var lat, lng, acc *float64
	var locTS *time.Time
	if loc != nil {
		lat, lng, acc = &loc.Latitude, &loc.Longitude, &loc.Accuracy
		locTS = &loc.Timestamp
	}

	res, err := r.db.ExecContext(ctx, query, id, sentAt, lat, lng, acc, locTS, alert.StatusActive, expectedLastSent)
	if err != nil {
		return fmt.Errorf("error recording send: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for send: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *PostgresAlertRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to alert.Status) error {
	// The from-status guard keeps stopped and done terminal.
	query := `UPDATE alerts SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("error updating alert status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for status update: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	a := &alert.Alert{}
	var lastSent, locTS sql.NullTime
	var lat, lng, acc sql.NullFloat64

	err := row.Scan(
		&a.ID, &a.UserName, &a.Contact.Phone, &a.Contact.Email, &a.StartAt, &a.EndAt,
		&a.IntervalSeconds, &a.Status, &lastSent, &a.TotalSent, &a.MaxSends,
		&lat, &lng, &acc, &locTS, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSent.Valid {
		t := lastSent.Time
		a.LastSent = &t
	}
	if lat.Valid && lng.Valid {
		a.Location = &geo.Location{
			Latitude:  lat.Float64,
			Longitude: lng.Float64,
			Accuracy:  acc.Float64,
		}
		if locTS.Valid {
			a.Location.Timestamp = locTS.Time
		}
	}
	return a, nil
}
