package transport

import (
	"context"
	"time"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"

	"github.com/sirupsen/logrus"
)

// Fanout sends a message over every configured channel. Channels fail
// independently: the tick counts as attempted as long as at least one channel
// was tried, and no channel failure propagates to the scheduling loop.
type Fanout struct {
	senders []dispatch.Sender
	timeout time.Duration
	logger  *logrus.Entry
}

func NewFanout(senders []dispatch.Sender, timeout time.Duration, logger *logrus.Entry) *Fanout {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fanout{senders: senders, timeout: timeout, logger: logger}
}

func (f *Fanout) Channel() string { return "fanout" }

// Send attempts every channel, each bounded by the fanout timeout. Channels
// do not all need to succeed: an error is returned only when no channel
// delivered, so callers can decide not to credit the tick.
func (f *Fanout) Send(ctx context.Context, contact alert.Contact, msg dispatch.Message) error {
	var lastErr error
	delivered := 0
	for _, s := range f.senders {
		sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := s.Send(sendCtx, contact, msg)
		cancel()
		if err != nil {
			lastErr = err
			f.logger.WithField("channel", s.Channel()).Warnf("dispatch failed: %v", err)
			continue
		}
		delivered++
		f.logger.WithField("channel", s.Channel()).Debug("dispatch delivered")
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}
