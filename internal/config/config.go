package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// Logging
	LogLevel string

	// Auth
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPExpenseQueue string
	AMQPInviteQueue  string

	// Recurring worker
	RecurringBatchSize     int
	RecurringScheduleTimes []string
	RecurringRunOnStartup  bool
	InviteMaxAge           time.Duration

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Caches
	OwnerCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "fintrack"),
		TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPExpenseQueue: getEnv("AMQP_EXPENSE_QUEUE", "expense.materialized"),
		AMQPInviteQueue:  getEnv("AMQP_INVITE_QUEUE", "household.invited"),

		RecurringBatchSize:     getEnvInt("RECURRING_BATCH_SIZE", 100),
		RecurringScheduleTimes: getEnvList("RECURRING_SCHEDULE_TIMES", []string{"00:05"}),
		RecurringRunOnStartup:  getEnvBool("RECURRING_RUN_ON_STARTUP", false),
		InviteMaxAge:           getEnvDuration("INVITE_MAX_AGE", 14*24*time.Hour),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		OwnerCacheTTL: getEnvDuration("OWNER_CACHE_TTL", 10*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	return combine(c.problems())
}

// ValidateAPI is Validate plus the settings only the API server needs.
func (c *Config) ValidateAPI() error {
	errors := c.problems()
	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 bytes")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	return combine(errors)
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) problems() []string {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPExpenseQueue == "" || c.AMQPInviteQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.RecurringBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring batch size %d: must be at least 1", c.RecurringBatchSize))
	} else if c.RecurringBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid recurring batch size %d: must be at most 1000", c.RecurringBatchSize))
	}

	if len(c.RecurringScheduleTimes) == 0 {
		errors = append(errors, "at least one recurring schedule time is required")
	}
	for _, s := range c.RecurringScheduleTimes {
		if _, err := time.Parse("15:04", s); err != nil {
			errors = append(errors, fmt.Sprintf("invalid recurring schedule time '%s': must be HH:MM", s))
		}
	}

	if c.InviteMaxAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid invite max age %v: must not be negative", c.InviteMaxAge))
	}

	if c.OwnerCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid owner cache TTL %v: must be positive", c.OwnerCacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when a spreadsheet is configured")
		}
	}

	return errors
}

// SheetsEnabled reports whether expenses are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
