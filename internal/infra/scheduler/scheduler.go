package scheduler

import (
	"context"
	"time"

	"emergency_alert_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepScheduler drives the server-side reconciler on a fixed cadence. It
// holds no per-alert state; every invocation is a stateless sweep.
type SweepScheduler struct {
	cronEngine *cron.Cron
	reconciler *app.Reconciler
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration
}

func NewSweepScheduler(
	reconciler *app.Reconciler,
	logger *logrus.Entry,
	cronSpec string, // e.g., "* * * * *" (every minute)
	timeout time.Duration,
) *SweepScheduler {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		reconciler: reconciler,
		logger:     logger,
		cronSpec:   cronSpec,
		timeout:    timeout,
	}
}

func (s *SweepScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		result, err := s.reconciler.Sweep(ctx)
		if err != nil {
			s.logger.Errorf("reconciler sweep failed: %v", err)
			return
		}
		if result.Processed > 0 || result.Failed > 0 {
			s.logger.Infof("reconciler sweep at %s: %d processed, %d failed",
				result.Timestamp.Format(time.RFC3339), result.Processed, result.Failed)
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Infof("sweep scheduler started with spec %q", s.cronSpec)
	return nil
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // Waits for a running sweep to finish.
	<-ctx.Done()
	s.logger.Info("sweep scheduler gracefully stopped")
}
