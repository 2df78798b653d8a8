package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken   string
	DiscordGuildID string // Primary Discord guild ID, empty registers commands globally

	// Storage configuration: postgres when DatabaseURL is set, otherwise a
	// local sqlite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// NATS configuration, empty disables the event forwarder
	NATSURL string

	// Catalog configuration, empty uses the embedded catalog
	CatalogPath string

	// Scheduler configuration
	SweepIntervalSeconds int

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp", or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production", or "test"
}

// Load reads configuration from environment variables. There is no global
// instance: the caller owns the value and passes it down explicitly.
func Load() (*Config, error) {
	config := &Config{
		// Discord
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID: os.Getenv("DISCORD_GUILD_ID"),

		// Storage
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnvWithDefault("SQLITE_PATH", "data/arcade.db"),

		// NATS
		NATSURL: os.Getenv("NATS_URL"),

		// Catalog
		CatalogPath: os.Getenv("CATALOG_PATH"),

		// Scheduler
		SweepIntervalSeconds: 5,

		// OpenTelemetry
		OTelEnabled:              os.Getenv("METRICS_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "arcade"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: 60000,

		// Logging
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if interval := os.Getenv("SWEEP_INTERVAL_SECONDS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.SweepIntervalSeconds = parsed
		}
	}
	if millis := os.Getenv("OTEL_EXPORT_INTERVAL_MILLIS"); millis != "" {
		if parsed, err := strconv.Atoi(millis); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
	}
	switch config.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER_TYPE %q", config.OTelExporterType)
	}

	return config, nil
}

// SweepInterval returns the scheduler sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// UsePostgres reports whether the postgres store should back the engine.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		SQLitePath:           "data/arcade.db",
		SweepIntervalSeconds: 1,
		OTelExporterType:     "none",
		OTelServiceName:      "arcade",
		LogLevel:             "debug",
	}
}
