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
	url := flag.String("url", fetch.DefaultRobotsURL, "robots list source")
	output := flag.String("output", "", "pattern file to write (defaults to ROBOTS_PATH)")
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
		path = cfg.RobotsPath
	}
	if path == "" {
		log.Fatal().Msg("No output path: set -output or ROBOTS_PATH")
	}

	if err := fetch.RobotsList(context.Background(), *url, path); err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch robots list")
	}
}
