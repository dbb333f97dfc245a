package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emergency_alert_service/internal/app"
	"emergency_alert_service/internal/device"
	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"
	domaingeo "emergency_alert_service/internal/domain/geo"
	"emergency_alert_service/internal/infra/config"
	idb "emergency_alert_service/internal/infra/database"
	infrageo "emergency_alert_service/internal/infra/geo"
	"emergency_alert_service/internal/infra/httpapi"
	"emergency_alert_service/internal/infra/logger"
	"emergency_alert_service/internal/infra/scheduler"
	"emergency_alert_service/internal/infra/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLog := logger.Component("main")
	mainLog.Infof("configuration loaded, environment: %s", cfg.Environment)

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLog.Fatalf("could not connect to database: %v", err)
	}
	defer db.Close()
	mainLog.Info("database connection established")

	alertRepo := idb.NewPostgresAlertRepository(db)

	// Dispatch channels. Each is independent; the fanout tolerates partial
	// failure.
	senders := []dispatch.Sender{
		transport.NewSMSSender(transport.SMSConfig{
			ProviderDomain: cfg.SMSProviderDomain,
			APIKey:         cfg.SMSAPIKey,
			SourceNumber:   cfg.SMSSourceNumber,
		}),
		transport.NewEmailSender(transport.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
	}
	if cfg.TelegramToken != "" {
		tg, err := transport.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			mainLog.Fatalf("could not create Telegram sender: %v", err)
		}
		senders = append(senders, tg)
		mainLog.Info("telegram channel enabled")
	}
	fanout := transport.NewFanout(senders, cfg.DispatchTimeout, logger.Component("dispatch"))

	// Optional location refresh for the reconciler.
	var locations domaingeo.Provider
	if cfg.LocationSourceURL != "" {
		locations = infrageo.NewCachingProvider(infrageo.NewHTTPProvider(cfg.LocationSourceURL))
		mainLog.Info("location source enabled")
	}

	// Device-local dispatcher with its persisted schedule snapshot.
	snapshots := device.NewFileSnapshotStore(cfg.SnapshotPath)
	dispatcher := device.NewDispatcher(
		alertRepo, fanout, snapshots, device.NewRealClock(),
		logger.Component("device"), cfg.DispatchTimeout,
	)

	// Boot recovery: resume a schedule that survived a restart.
	if err := dispatcher.RecoverOnBoot(context.Background()); err != nil {
		mainLog.Warnf("boot recovery failed: %v", err)
	}

	alertService := app.NewAlertService(
		alertRepo,
		dispatcher,
		app.CampaignParams{
			UserName:        cfg.UserName,
			Contact:         alert.Contact{Phone: cfg.AlertPhone, Email: cfg.AlertEmail},
			IntervalSeconds: cfg.IntervalSeconds,
			Duration:        cfg.Duration,
		},
		cfg.StopCode,
		logger.Component("alerts"),
	)

	// Server-side reconciler on its cron cadence.
	reconciler := app.NewReconciler(alertRepo, fanout, locations, logger.Component("reconciler"))
	sweeps := scheduler.NewSweepScheduler(reconciler, logger.Component("scheduler"), cfg.SweepCronSpec, 2*time.Minute)
	if err := sweeps.Start(); err != nil {
		mainLog.Fatalf("could not start sweep scheduler: %v", err)
	}

	handler := httpapi.NewAlertHandler(alertService, logger.Component("http"))
	server := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		mainLog.Infof("HTTP API listening on %s", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLog.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Warnf("HTTP shutdown: %v", err)
	}
	sweeps.Stop()
	// The device schedule intentionally stays persisted: RecoverOnBoot picks
	// it up when the process comes back.
	mainLog.Info("shut down gracefully")
}
