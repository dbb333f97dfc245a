package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	Environment    string

	// Campaign parameters, fixed per deployment like the reference app.
	UserName        string
	AlertPhone      string
	AlertEmail      string
	StopCode        string // never logged
	IntervalSeconds int
	Duration        time.Duration

	// Device-local dispatcher.
	SnapshotPath    string
	DispatchTimeout time.Duration

	// Server-side reconciler.
	SweepCronSpec string

	// SMS provider HTTP API.
	SMSProviderDomain string
	SMSAPIKey         string
	SMSSourceNumber   string

	// SMTP for the email channel.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Optional Telegram channel; disabled when the token is empty.
	TelegramToken  string
	TelegramChatID int64

	// Optional location source queried before each reconciler send.
	LocationSourceURL string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.StopCode = os.Getenv("STOP_CODE")
	if cfg.StopCode == "" {
		return nil, fmt.Errorf("STOP_CODE is not set")
	}

	cfg.AlertPhone = os.Getenv("ALERT_PHONE")
	if cfg.AlertPhone == "" {
		return nil, fmt.Errorf("ALERT_PHONE is not set")
	}

	cfg.AlertEmail = os.Getenv("ALERT_EMAIL")
	if cfg.AlertEmail == "" {
		return nil, fmt.Errorf("ALERT_EMAIL is not set")
	}

	cfg.UserName = os.Getenv("ALERT_USER_NAME")
	if cfg.UserName == "" {
		cfg.UserName = "Unknown"
	}

	cfg.IntervalSeconds, err = intFromEnv("ALERT_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	if cfg.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("ALERT_INTERVAL_SECONDS must be positive")
	}

	durationMinutes, err := intFromEnv("ALERT_DURATION_MINUTES", 120)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("ALERT_DURATION_MINUTES must be positive")
	}
	cfg.Duration = time.Duration(durationMinutes) * time.Minute

	timeoutSeconds, err := intFromEnv("DISPATCH_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.DispatchTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.SnapshotPath = os.Getenv("SNAPSHOT_PATH")
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "alert_schedule.json"
	}

	cfg.SweepCronSpec = os.Getenv("SWEEP_CRON_SPEC")
	if cfg.SweepCronSpec == "" {
		cfg.SweepCronSpec = "* * * * *" // Default: every minute
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.SMSProviderDomain = os.Getenv("SMS_PROVIDER_DOMAIN")
	cfg.SMSAPIKey = os.Getenv("SMS_API_KEY")
	cfg.SMSSourceNumber = os.Getenv("SMS_SOURCE_NUMBER")

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort, err = intFromEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	cfg.LocationSourceURL = os.Getenv("LOCATION_SOURCE_URL")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

func intFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
