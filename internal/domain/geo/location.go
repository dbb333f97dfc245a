package geo

import (
	"context"
	"fmt"
	"time"
)

// Location is one GPS fix.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters
	Timestamp time.Time
}

// Provider yields the current position. Implementations are expected to be
// fallible; callers treat an error as non-fatal and reuse the last known fix.
type Provider interface {
	CurrentLocation(ctx context.Context) (*Location, error)
}

// MapsLink returns a Google Maps URL for the given coordinates.
func MapsLink(latitude, longitude float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%f,%f", latitude, longitude)
}
