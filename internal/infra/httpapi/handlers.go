package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"emergency_alert_service/internal/app"
	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/geo"
	idb "emergency_alert_service/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AlertHandler holds the dependencies for alert HTTP handlers.
type AlertHandler struct {
	service app.AlertService
	logger  *logrus.Entry
}

func NewAlertHandler(service app.AlertService, logger *logrus.Entry) *AlertHandler {
	return &AlertHandler{service: service, logger: logger}
}

// NewRouter builds the chi router for the alert API.
func NewRouter(h *AlertHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Post("/", h.Activate)
		r.Get("/active", h.Active)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/stop", h.Stop)
	})
	return r
}

type alertResponse struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastSent        *time.Time `json:"last_sent,omitempty"`
	TotalSent       int        `json:"total_sent"`
	MaxSends        int        `json:"max_sends"`
	RemainingSends  int        `json:"remaining_sends"`
	NextSendAt      *time.Time `json:"next_send_at,omitempty"`
}

func toAlertResponse(a *alert.Alert) alertResponse {
	return alertResponse{
		ID:              a.ID.String(),
		Status:          string(a.Status),
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		IntervalSeconds: a.IntervalSeconds,
		LastSent:        a.LastSent,
		TotalSent:       a.TotalSent,
		MaxSends:        a.MaxSends,
		RemainingSends:  a.RemainingSends(),
		NextSendAt:      a.NextSendAt(),
	}
}

// Activate creates a new alert and starts dispatching immediately.
func (h *AlertHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The location is optional: an alert without a fix still dispatches.
	var loc *geo.Location
	if payload.Latitude != nil && payload.Longitude != nil {
		loc = &geo.Location{
			Latitude:  *payload.Latitude,
			Longitude: *payload.Longitude,
			Accuracy:  payload.Accuracy,
			Timestamp: time.Now(),
		}
	}

	a, err := h.service.Activate(r.Context(), loc)
	if err != nil {
		if errors.Is(err, app.ErrActiveAlertExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Errorf("activation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to activate alert")
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(a))
}

// Stop ends an alert, gated by the stop code.
func (h *AlertHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var payload struct {
		StopCode string `json:"stop_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Stop(r.Context(), id, payload.StopCode); err != nil {
		switch {
		case errors.Is(err, alert.ErrInvalidStopCode):
			writeError(w, http.StatusForbidden, "invalid stop code")
		case errors.Is(err, idb.ErrAlertNotFound):
			writeError(w, http.StatusNotFound, "alert not found")
		default:
			h.logger.Errorf("stop failed for alert %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to stop alert")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Active returns the most recent active alert.
func (h *AlertHandler) Active(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Active(r.Context())
	if err != nil {
		if errors.Is(err, idb.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "no active alert")
			return
		}
		h.logger.Errorf("active lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch active alert")
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(a))
}

// Get returns one alert by ID.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, idb.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Errorf("lookup failed for alert %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch alert")
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(a))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
