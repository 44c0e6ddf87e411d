// Package main provides the flightinfo server.
//
// flightinfo answers airport and aircraft flight queries from the public
// FlightAware pages, normalising times and dates and merging the partial legs
// helicopters produce when they visit offshore platforms.
//
// Usage:
//
//	flightinfo [options]
//
// Options:
//
//	-config PATH   YAML configuration file (env: FLIGHTINFO_CONFIG)
//	-listen ADDR   HTTP listen address, overrides the file (env: FLIGHTINFO_LISTEN)
//
// API Endpoints:
//
//	GET /flights?airport=SBME,SBJR&aircraft=PR-OHR
//	    Departures of each airport and merged history of each aircraft.
//
//	GET /health
//	    Health check endpoint.
//
//	GET /metrics
//	    Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"flightinfo/internal/api"
	"flightinfo/internal/config"
	"flightinfo/internal/flightaware"
	"flightinfo/internal/lookup"
	"flightinfo/internal/metrics"
	"flightinfo/internal/publish"
)

func main() {
	configPath := flag.String("config", envOrDefault("FLIGHTINFO_CONFIG", ""), "YAML configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enable {
		m = metrics.New()
	}

	merger, err := cfg.Lookup.Merger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building merger: %v\n", err)
		os.Exit(1)
	}

	var pub publish.Publisher = publish.Nop{}
	if cfg.NATS.URL != "" {
		n, err := publish.OpenNATS(publish.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		})
		if err != nil {
			logger.Error().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, publishing disabled")
		} else {
			pub = n
			logger.Info().Str("url", cfg.NATS.URL).Msg("publishing lookups to NATS")
		}
	}
	defer pub.Close()

	client := flightaware.NewClient(
		flightaware.WithBaseURL(cfg.Upstream.BaseURL),
		flightaware.WithTimeout(cfg.Upstream.Timeout),
		flightaware.WithHeaders(map[string]string{
			"User-Agent":      cfg.Upstream.UserAgent,
			"Accept-Language": cfg.Upstream.AcceptLanguage,
		}),
		flightaware.WithRateLimit(cfg.Upstream.RatePerSecond, cfg.Upstream.Burst),
		flightaware.WithRetry(cfg.Upstream.MaxRetries, cfg.Upstream.Backoff, cfg.Upstream.MaxBackoff),
		flightaware.WithMetrics(m),
		flightaware.WithLogger(logger.With().Str("component", "flightaware").Logger()),
	)

	svc := lookup.New(client,
		lookup.WithMerger(merger),
		lookup.WithDateParser(merger.Dates),
		lookup.WithRegistrationPrefixes(cfg.Lookup.RegistrationPrefixes),
		lookup.WithConcurrency(cfg.Lookup.MaxConcurrency),
		lookup.WithPublisher(pub),
		lookup.WithMetrics(m),
		lookup.WithLogger(logger.With().Str("component", "lookup").Logger()),
	)

	server := api.NewServer(svc, m, logger, api.Config{
		ListenAddress:  cfg.Server.Listen,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	if err := server.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
