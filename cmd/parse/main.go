package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/config"
	"github.com/pitangainnovare/scielo-usage-counter/internal/device"
	"github.com/pitangainnovare/scielo-usage-counter/internal/geo"
	"github.com/pitangainnovare/scielo-usage-counter/internal/observability"
	"github.com/pitangainnovare/scielo-usage-counter/internal/pipeline"
	"github.com/pitangainnovare/scielo-usage-counter/internal/robots"
	"github.com/pitangainnovare/scielo-usage-counter/internal/state"
	"github.com/pitangainnovare/scielo-usage-counter/internal/writer"
)

func main() {
	logsDir := flag.String("logs-dir", "", "directory of raw access logs to register before parsing")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	observability.InitLogger(cfg.LogLevel)

	log.Info().
		Str("collection", cfg.Collection).
		Msg("Starting usage log parser")

	// Initialize tracer (if enabled)
	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "usage-log-parser",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.TracingEndpoint,
		Protocol:       cfg.TracingProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, locker, err := state.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer store.Close()

	matcher, err := robots.Load(cfg.RobotsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load robots list")
	}

	geoLookup, err := geo.Open(cfg.MMDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open geolocation map")
	}
	defer geoLookup.Close()

	var mirror pipeline.StatsMirror
	if cfg.MirrorStats() {
		chMirror, err := writer.NewClickHouseMirror(cfg.ClickHouseHost, cfg.ClickHousePort, cfg.ClickHouseDB, cfg.Collection)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer chMirror.Close()
		mirror = chMirror
	}

	controller, err := pipeline.NewController(cfg, store, locker,
		matcher, device.NewTableClassifier(), geoLookup, mirror)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline controller")
	}

	if *logsDir != "" {
		if _, err := controller.RegisterDirectory(ctx, *logsDir); err != nil {
			log.Fatal().Err(err).Msg("Failed to register log files")
		}
	}

	if err := controller.IngestQueuedFiles(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ingest queued log files")
	}

	log.Info().Msg("Parse run finished")
}
