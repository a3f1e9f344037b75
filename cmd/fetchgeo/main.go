package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/config"
	"github.com/pitangainnovare/scielo-usage-counter/internal/fetch"
	"github.com/pitangainnovare/scielo-usage-counter/internal/observability"
)

func main() {
	yearMonth := flag.String("month", "", "map release to download, yyyy-mm (defaults to current month)")
	output := flag.String("output", "", "mmdb file to install (defaults to MMDB_PATH)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	observability.InitLogger(cfg.LogLevel)

	path := *output
	if path == "" {
		path = cfg.MMDBPath
	}
	if path == "" {
		log.Fatal().Msg("No output path: set -output or MMDB_PATH")
	}

	if err := fetch.GeoMap(context.Background(), *yearMonth, path); err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch geolocation map")
	}
}
