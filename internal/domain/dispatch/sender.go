package dispatch

import (
	"context"

	"emergency_alert_service/internal/domain/alert"
)

// Message is one rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message over a single channel (SMS, email, ...). Each
// channel is independent: one channel failing does not imply the others did.
type Sender interface {
	Channel() string
	Send(ctx context.Context, contact alert.Contact, msg Message) error
}
