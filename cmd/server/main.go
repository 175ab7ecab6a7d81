// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package main is the entry point for the Planpress server.
//
// Planpress receives substitution plan documents pushed by a school's
// scheduling system, keeps the current and upcoming plan in two fixed
// slots, and publishes the plan that is relevant right now as a rendered
// HTML table to a WordPress page.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config
//     files (Koanf v2)
//  2. Backup store: File or BadgerDB persistence of the raw documents
//  3. Publisher: WordPress REST client behind a circuit breaker
//  4. Scheduler: Slot assignment, cutoff timing, crash recovery
//  5. Rollover loop: Midnight slot shift in the configured timezone
//  6. HTTP server: Ingest, query, health, and metrics endpoints
//
// All long-running pieces run under a suture supervision tree and are
// restarted on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, then an optional config.yaml,
// then built-in defaults. The only required setting is the shared
// ingest secret:
//
//	export VPLAN_AUTH_TOKEN=$(openssl rand -hex 24)
//	./planpress
//
// Publishing to WordPress additionally needs:
//
//	export WORDPRESS_URL=https://school.example
//	export WORDPRESS_USERNAME=planbot
//	export WORDPRESS_APP_PASSWORD=xxxx-xxxx-xxxx-xxxx
//	export WORDPRESS_PAGE_ID=42
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests (10s timeout),
// and closes the backup store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/planpress/planpress/internal/api"
	"github.com/planpress/planpress/internal/backup"
	"github.com/planpress/planpress/internal/config"
	"github.com/planpress/planpress/internal/lifecycle"
	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/publish"
	"github.com/planpress/planpress/internal/rollover"
	"github.com/planpress/planpress/internal/supervisor"
	"github.com/planpress/planpress/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	loc, err := cfg.Location()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load timezone")
	}

	logging.Info().
		Str("timezone", cfg.Schedule.Timezone).
		Int("cutoff_hour", cfg.Schedule.CutoffHour).
		Str("backup_store", cfg.Backup.Store).
		Bool("wordpress_enabled", cfg.WordPress.Enabled).
		Msg("Starting Planpress")

	store, err := backup.NewStore(cfg.Backup)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize backup store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing backup store")
		}
	}()

	// The circuit breaker wraps the WordPress client so a dead or slow
	// sink fails fast instead of stalling every ingestion.
	var editor publish.PageEditor
	if cfg.WordPress.Enabled {
		editor = publish.NewCircuitBreakerEditor(publish.NewWordPressClient(cfg.WordPress))
	} else {
		logging.Info().Msg("WordPress publishing disabled - plans are stored but not published")
		editor = publish.NoopEditor{}
	}
	publisher := publish.NewPublisher(editor)

	scheduler := lifecycle.NewScheduler(cfg.Schedule.CutoffHour, loc, store, publisher, lifecycle.RealClock())

	// Re-ingest the persisted tomorrow plan so a restart does not lose
	// the plan that has not been published yet.
	if err := scheduler.Recover(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Startup recovery failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())

	rolloverLogger := logging.Logger()
	rolloverSvc := rollover.NewService(scheduler, loc, lifecycle.RealClock(), &rolloverLogger)
	tree.AddSchedulingService(services.NewRolloverService(rolloverSvc))

	if badgerStore, ok := store.(*backup.BadgerStore); ok {
		tree.AddSchedulingService(services.NewBadgerGCService(badgerStore, time.Hour))
	}

	router := api.NewRouter(cfg, scheduler)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Planpress stopped gracefully")
}
