package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/config"
	"github.com/pitangainnovare/scielo-usage-counter/internal/observability"
	"github.com/pitangainnovare/scielo-usage-counter/internal/state"
	"github.com/pitangainnovare/scielo-usage-counter/internal/writer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	observability.InitLogger(cfg.LogLevel)

	ctx := context.Background()

	if cfg.MySQLDSN != "" {
		store, err := state.NewMySQLStore(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open mysql store")
		}
		defer store.Close()

		if err := store.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create control tables")
		}
	} else {
		log.Info().Msg("No MySQL DSN configured, the embedded store needs no schema")
	}

	if cfg.MirrorStats() {
		mirror, err := writer.NewClickHouseMirror(cfg.ClickHouseHost, cfg.ClickHousePort, cfg.ClickHouseDB, cfg.Collection)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer mirror.Close()

		if err := mirror.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create summary table")
		}
	}

	log.Info().Msg("Database initialization finished")
}
