package config

import (
	"os"
	"testing"
)

// chdirTemp keeps godotenv from picking up a stray .env in the test working dir
func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collection != "scl" {
		t.Errorf("Collection = %q, want scl", cfg.Collection)
	}
	if cfg.BoltPath != "data/control.db" {
		t.Errorf("BoltPath = %q, want data/control.db", cfg.BoltPath)
	}
	if cfg.UnsortedDir != "data/unsorted_pretables" {
		t.Errorf("UnsortedDir = %q, want data/unsorted_pretables", cfg.UnsortedDir)
	}
	if cfg.ClickHousePort != 9000 {
		t.Errorf("ClickHousePort = %d, want 9000", cfg.ClickHousePort)
	}
	if cfg.MirrorStats() {
		t.Error("MirrorStats() = true with no ClickHouse host configured")
	}
	if cfg.CountryOnly {
		t.Error("CountryOnly = true, want the lat/long default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COLLECTION", "arg")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/usage")
	t.Setenv("CLICKHOUSE_HOST", "ch.local")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("GEO_COUNTRY_ONLY", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collection != "arg" {
		t.Errorf("Collection = %q, want arg", cfg.Collection)
	}
	if cfg.MySQLDSN == "" {
		t.Error("MySQLDSN not picked up from environment")
	}
	if !cfg.MirrorStats() {
		t.Error("MirrorStats() = false with CLICKHOUSE_HOST set")
	}
	if cfg.ClickHousePort != 9440 {
		t.Errorf("ClickHousePort = %d, want 9440", cfg.ClickHousePort)
	}
	if !cfg.CountryOnly {
		t.Error("CountryOnly = false with GEO_COUNTRY_ONLY=true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("CLICKHOUSE_PORT", "not-a-number")

	if got := getEnvInt("CLICKHOUSE_PORT", 9000); got != 9000 {
		t.Errorf("getEnvInt() = %d, want the 9000 fallback", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Collection:  "scl",
			BoltPath:    "data/control.db",
			UnsortedDir: "data/unsorted_pretables",
			PretableDir: "data/pretables",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Missing collection", func(c *Config) { c.Collection = "" }, true},
		{"No state store", func(c *Config) { c.BoltPath = "" }, true},
		{"MySQL without bolt", func(c *Config) { c.BoltPath = ""; c.MySQLDSN = "dsn" }, false},
		{"Missing unsorted dir", func(c *Config) { c.UnsortedDir = "" }, true},
		{"Missing pretable dir", func(c *Config) { c.PretableDir = "" }, true},
		{"Mirror with bad port", func(c *Config) { c.ClickHouseHost = "ch"; c.ClickHousePort = 0 }, true},
		{"Mirror without database", func(c *Config) {
			c.ClickHouseHost = "ch"
			c.ClickHousePort = 9000
			c.ClickHouseDB = ""
		}, true},
		{"Mirror configured", func(c *Config) {
			c.ClickHouseHost = "ch"
			c.ClickHousePort = 9000
			c.ClickHouseDB = "usage"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
