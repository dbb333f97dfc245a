package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"
)

// SMSConfig configures the SMS provider HTTP API client.
type SMSConfig struct {
	ProviderDomain string
	APIKey         string
	SourceNumber   string
	Timeout        time.Duration
}

// SMSSender delivers messages through the SMS provider's HTTP API.
type SMSSender struct {
	config SMSConfig
	client *http.Client
}

// smsRequest is the request payload for the SMS API.
type smsRequest struct {
	SrcNum    string `json:"srcNum"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// smsResponse is the per-message result from the SMS API.
type smsResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMSSender{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *SMSSender) Channel() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, contact alert.Contact, msg dispatch.Message) error {
	requestBody, err := json.Marshal([]smsRequest{{
		SrcNum:    s.config.SourceNumber,
		Recipient: contact.Phone,
		Body:      msg.Body,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	var results []smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}
	for _, r := range results {
		if r.StatusCode != http.StatusOK || r.Status != "ACCEPTED" {
			return fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
		}
	}
	return nil
}
