package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the usage-counter pipeline
type Config struct {
	// Collection being processed (e.g. "scl")
	Collection string

	// State store. When MySQLDSN is empty the embedded BoltDB store is used.
	MySQLDSN string
	BoltPath string

	// Directories
	UnsortedDir string // per-day unsorted pretable buckets
	PretableDir string // promoted (sorted) pretables
	SummaryDir  string // parse-run stats summaries

	// Lookup resources
	MMDBPath    string // geolocation map (MaxMind-compatible mmdb)
	RobotsPath  string // bot pattern list
	CountryOnly bool   // emit country code instead of lat/long

	// ClickHouse stats mirror (optional, enabled when host is set)
	ClickHouseHost string
	ClickHousePort int
	ClickHouseDB   string

	// Observability
	LogLevel        string
	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
}

// Load loads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	// Best effort: a missing .env is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Collection: getEnv("COLLECTION", "scl"),

		MySQLDSN: getEnv("MYSQL_DSN", ""),
		BoltPath: getEnv("BOLT_PATH", "data/control.db"),

		UnsortedDir: getEnv("UNSORTED_PRETABLES_DIRECTORY", "data/unsorted_pretables"),
		PretableDir: getEnv("PRETABLES_DIRECTORY", "data/pretables"),
		SummaryDir:  getEnv("SUMMARY_DIRECTORY", "data/summaries"),

		MMDBPath:    getEnv("MMDB_PATH", ""),
		RobotsPath:  getEnv("ROBOTS_PATH", ""),
		CountryOnly: getEnvBool("GEO_COUNTRY_ONLY", false),

		ClickHouseHost: getEnv("CLICKHOUSE_HOST", ""),
		ClickHousePort: getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "usage"),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", ""),
		TracingProtocol: getEnv("TRACING_PROTOCOL", "grpc"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// MirrorStats reports whether the ClickHouse summary mirror is configured
func (c *Config) MirrorStats() bool {
	return c.ClickHouseHost != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("COLLECTION is required")
	}
	if c.MySQLDSN == "" && c.BoltPath == "" {
		return fmt.Errorf("one of MYSQL_DSN or BOLT_PATH must be specified")
	}
	if c.UnsortedDir == "" {
		return fmt.Errorf("UNSORTED_PRETABLES_DIRECTORY is required")
	}
	if c.PretableDir == "" {
		return fmt.Errorf("PRETABLES_DIRECTORY is required")
	}
	if c.ClickHouseHost != "" {
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required when the stats mirror is enabled")
		}
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
