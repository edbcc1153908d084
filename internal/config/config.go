package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/customerpulse/pulse/internal/llm"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Daily job configuration
	DailyJobSchedule string // six-field cron expression, seconds first
	DailyJobWorkers  int
	DailyJobTimeout  time.Duration
	TimeZone         string

	// Persistence
	DatabaseURL      string
	DatabaseMaxConns int

	// Text analyzer bootstrap; stored encrypted as the active provider config on startup
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string
	SecretKey   string

	// Locks
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Run report archive
	StorageAccount   string
	StorageContainer string
	ReportDir        string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DailyJobSchedule: getEnv("DAILY_JOB_SCHEDULE", "0 0 0 * * *"),
		DailyJobWorkers:  getIntEnv("DAILY_JOB_WORKERS", 1),
		DailyJobTimeout:  getDurationEnv("DAILY_JOB_TIMEOUT", 30*time.Minute),
		TimeZone:         getEnv("TIMEZONE", "UTC"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		LLMProvider: getEnv("LLM_PROVIDER", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		SecretKey:   getEnv("SECRET_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "pulse-reports"),
		ReportDir:        getEnv("REPORT_DIR", ""),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Location resolves TimeZone, which validate has already checked
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.DailyJobSchedule); err != nil {
		return fmt.Errorf("DAILY_JOB_SCHEDULE is not a valid cron expression: %w", err)
	}

	if c.DailyJobWorkers < 1 {
		return fmt.Errorf("DAILY_JOB_WORKERS must be at least 1")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.LLMProvider != "" {
		if !llm.IsSupported(c.LLMProvider) {
			return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
		}
		if c.LLMProvider != llm.ProviderMock && c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER is %s", c.LLMProvider)
		}
	}

	if c.SecretKey == "" && (c.LLMProvider != "" || c.DatabaseURL != "") {
		return fmt.Errorf("SECRET_KEY is required to store provider credentials")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
