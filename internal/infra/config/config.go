package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all process configuration. Lifecycle rules live in the
// database settings singleton, not here.
type AppConfig struct {
	DatabaseURL                string
	RedisURL                   string
	TelegramToken              string // empty: reminders are logged instead of delivered
	LogLevel                   string
	Environment                string
	Timezone                   string
	Location                   *time.Location
	CronSpecGenerate           string
	CronSpecArchive            string
	CronSpecReminders          string
	CronSpecScheduledReminders string // drains reminders scheduled for new cycles
	BatchWorkers               int
	MetricsAddr                string
	ReminderMaxAttempts        int
	PolicyFile                 string // optional YAML seed for the settings singleton
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist; existing variables win.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.PolicyFile = os.Getenv("POLICY_FILE")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.Timezone = getEnv("TIMEZONE", "UTC")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.CronSpecGenerate = getEnv("CRON_SPEC_GENERATE", "0 2 * * *")    // 02:00 daily
	cfg.CronSpecArchive = getEnv("CRON_SPEC_ARCHIVE", "30 2 * * *")     // 02:30 daily
	cfg.CronSpecReminders = getEnv("CRON_SPEC_REMINDERS", "0 10 * * *") // 10:00 daily
	cfg.CronSpecScheduledReminders = getEnv("CRON_SPEC_SCHEDULED_REMINDERS", "*/15 * * * *")

	cfg.BatchWorkers, err = getPositiveInt("BATCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.ReminderMaxAttempts, err = getPositiveInt("REMINDER_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, v)
	}
	return v, nil
}
