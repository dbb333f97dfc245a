package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedSnapshot means the persisted schedule state could not be parsed
// or is missing required fields. Boot recovery treats it as abandoned.
var ErrMalformedSnapshot = errors.New("malformed schedule snapshot")

// ScheduleSnapshot is the device-local mirror of the fields the dispatcher
// needs to resume without querying the store. Written on schedule start,
// cleared on stop or expiry, read once at boot.
type ScheduleSnapshot struct {
	AlertID         uuid.UUID `json:"alert_id"`
	UserName        string    `json:"user_name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Subject         string    `json:"subject"`
	Message         string    `json:"message"`
	IntervalSeconds int       `json:"interval_seconds"`
	EndAt           time.Time `json:"end_at"`
	StartTime       time.Time `json:"start_time"`
}

// Interval returns the snapshot's send interval as a duration.
func (s *ScheduleSnapshot) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s *ScheduleSnapshot) validate() error {
	if s.AlertID == uuid.Nil || s.Phone == "" || s.IntervalSeconds <= 0 ||
		s.EndAt.IsZero() || s.StartTime.IsZero() {
		return ErrMalformedSnapshot
	}
	return nil
}

// SnapshotStore persists the schedule snapshot across process restarts.
type SnapshotStore interface {
	// Read returns nil, nil when no snapshot is persisted.
	Read() (*ScheduleSnapshot, error)
	Write(s *ScheduleSnapshot) error
	// Clear is a no-op when no snapshot is persisted.
	Clear() error
}

// FileSnapshotStore keeps the snapshot in a single JSON file, written
// atomically via a temp file and rename.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Read() (*ScheduleSnapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading schedule snapshot: %w", err)
	}

	var snap ScheduleSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrMalformedSnapshot
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *FileSnapshotStore) Write(s *ScheduleSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("error encoding schedule snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("error creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing schedule snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error clearing schedule snapshot: %w", err)
	}
	return nil
}
