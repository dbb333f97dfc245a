package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"emergency_alert_service/internal/app"
	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/geo"
	idb "emergency_alert_service/internal/infra/database"
	"emergency_alert_service/internal/infra/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	alert       *alert.Alert
	activateErr error
	stopErr     error

	activatedWith *geo.Location
	stoppedID     uuid.UUID
	stoppedCode   string
}

func (s *stubService) Activate(_ context.Context, loc *geo.Location) (*alert.Alert, error) {
	s.activatedWith = loc
	if s.activateErr != nil {
		return nil, s.activateErr
	}
	return s.alert, nil
}

func (s *stubService) Stop(_ context.Context, id uuid.UUID, stopCode string) error {
	s.stoppedID = id
	s.stoppedCode = stopCode
	return s.stopErr
}

func (s *stubService) Active(_ context.Context) (*alert.Alert, error) {
	if s.alert == nil {
		return nil, idb.ErrAlertNotFound
	}
	return s.alert, nil
}

func (s *stubService) Get(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	if s.alert == nil || s.alert.ID != id {
		return nil, idb.ErrAlertNotFound
	}
	return s.alert, nil
}

func newTestServer(svc app.AlertService) http.Handler {
	return NewRouter(NewAlertHandler(svc, logger.Component("httpapi-test")))
}

func sampleAlert() *alert.Alert {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return alert.NewAlert(
		"Maria",
		alert.Contact{Phone: "+49111222333", Email: "maria@example.com"},
		now,
		2*time.Hour,
		300,
		nil,
	)
}

func TestActivateReturnsCreatedAlert(t *testing.T) {
	a := sampleAlert()
	svc := &stubService{alert: a}
	srv := newTestServer(svc)

	body := strings.NewReader(`{"latitude": 48.2082, "longitude": 16.3738, "accuracy": 12.5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.activatedWith)
	assert.InDelta(t, 48.2082, svc.activatedWith.Latitude, 1e-9)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.ID.String(), resp["id"])
	assert.Equal(t, "active", resp["status"])
	assert.Equal(t, float64(24), resp["max_sends"])
}

func TestActivateWithoutLocation(t *testing.T) {
	svc := &stubService{alert: sampleAlert()}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.activatedWith)
}

func TestActivateConflictsWithRunningAlert(t *testing.T) {
	svc := &stubService{activateErr: app.ErrActiveAlertExists}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStopForwardsCodeAndMapsErrors(t *testing.T) {
	a := sampleAlert()

	tests := []struct {
		name       string
		stopErr    error
		wantStatus int
	}{
		{name: "ok", stopErr: nil, wantStatus: http.StatusOK},
		{name: "wrong code", stopErr: alert.ErrInvalidStopCode, wantStatus: http.StatusForbidden},
		{name: "unknown alert", stopErr: idb.ErrAlertNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{alert: a, stopErr: tt.stopErr}
			srv := newTestServer(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/alerts/"+a.ID.String()+"/stop",
				strings.NewReader(`{"stop_code": "sesame-1515"}`))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, a.ID, svc.stoppedID)
			assert.Equal(t, "sesame-1515", svc.stoppedCode)
		})
	}
}

func TestStopRejectsBadID(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/not-a-uuid/stop",
		strings.NewReader(`{"stop_code": "x"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.stoppedID, "service never called with a bad id")
}

func TestActiveReturnsNotFoundWithoutAlert(t *testing.T) {
	srv := newTestServer(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/active", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetByID(t *testing.T) {
	a := sampleAlert()
	srv := newTestServer(&stubService{alert: a})

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/"+a.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.ID.String(), resp["id"])

	req = httptest.NewRequest(http.MethodGet, "/api/alerts/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
