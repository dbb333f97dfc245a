package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	domaingeo "emergency_alert_service/internal/domain/geo"
)

// HTTPProvider fetches the current position from a location source endpoint
// (e.g. a local GPS daemon) returning {"latitude","longitude","accuracy"}.
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) CurrentLocation(ctx context.Context) (*domaingeo.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create location request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query location source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("location source returned status %d", resp.StatusCode)
	}

	var payload struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode location payload: %w", err)
	}

	return &domaingeo.Location{
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Accuracy:  payload.Accuracy,
		Timestamp: time.Now(),
	}, nil
}

// CachingProvider wraps another provider and falls back to the last known fix
// when the source fails. A location error is never fatal to a dispatch.
type CachingProvider struct {
	source domaingeo.Provider

	mu   sync.Mutex
	last *domaingeo.Location
}

func NewCachingProvider(source domaingeo.Provider) *CachingProvider {
	return &CachingProvider{source: source}
}

// Seed records an initial fix, typically the one captured at activation.
func (p *CachingProvider) Seed(loc *domaingeo.Location) {
	if loc == nil {
		return
	}
	p.mu.Lock()
	p.last = loc
	p.mu.Unlock()
}

func (p *CachingProvider) CurrentLocation(ctx context.Context) (*domaingeo.Location, error) {
	loc, err := p.source.CurrentLocation(ctx)
	if err == nil {
		p.mu.Lock()
		p.last = loc
		p.mu.Unlock()
		return loc, nil
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last != nil {
		return last, nil
	}
	return nil, err
}
