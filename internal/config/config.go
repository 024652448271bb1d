package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Data sources the dashboard can read from.
var DataSources = []string{"csv", "sqlite", "postgres", "sheets", "memory"}

var logLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	// HTTP Server
	Port string

	// Data source selection
	DataSource  string
	DatasetPath string

	// Stores
	SQLiteDBPath string
	PostgresDSN  string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleDatasetRange  string

	// AMQP, optional; an empty URL disables reload notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Caching
	CacheTTL  time.Duration
	CacheSize int

	// Rate limiting, requests per window per client
	RateLimit       int
	RateLimitWindow time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DataSource:  strings.ToLower(getEnv("DATA_SOURCE", "csv")),
		DatasetPath: getEnv("DATASET_PATH", "data/day.csv"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bikedash.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleDatasetRange:  getEnv("GOOGLE_DATASET_RANGE", "day!A:P"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bikedash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_reload"),

		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 256),

		RateLimit:       getEnvInt("RATE_LIMIT", 120),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate checks every setting and reports all problems in one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !oneOf(c.DataSource, DataSources) {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, DataSources))
	}

	switch c.DataSource {
	case "csv":
		if c.DatasetPath == "" {
			errors = append(errors, "dataset path cannot be empty when using csv source")
		} else if info, err := os.Stat(c.DatasetPath); err != nil {
			errors = append(errors, fmt.Sprintf("dataset file '%s' is not readable: %v", c.DatasetPath, err))
		} else if info.IsDir() {
			errors = append(errors, fmt.Sprintf("dataset path '%s' is a directory", c.DatasetPath))
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite source")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres source")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
		if c.GoogleDatasetRange == "" {
			errors = append(errors, "Google dataset range is required when using sheets source")
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	} else if c.CacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at most 100000", c.CacheSize))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}

	if !oneOf(c.LogLevel, logLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AMQPEnabled reports whether reload notifications are configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
