package main

import (
	"context"
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

	log.Info().
		Str("collection", cfg.Collection).
		Msg("Starting pretable promotion")

	// Initialize tracer (if enabled)
	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "usage-pretable",
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

	controller, err := pipeline.NewController(cfg, store, locker,
		matcher, device.NewTableClassifier(), geoLookup, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline controller")
	}

	claimed, err := controller.ExtractPretables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to claim dates for extraction")
	}
	log.Info().Int("claimed", len(claimed)).Msg("Dates claimed for pretable extraction")

	if err := controller.SortPretables(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to sort pretables")
	}

	log.Info().Msg("Pretable run finished")
}
