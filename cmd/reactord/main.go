// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Command reactord runs the reactor telemetry relay: a websocket endpoint
// devices push partial state updates to, an in-process fan-out hub for
// observers, and a DuckDB-backed snapshot store that is reset to a safe
// default on disconnect and on shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reactord/reactord/internal/api"
	"github.com/reactord/reactord/internal/config"
	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/relay"
	"github.com/reactord/reactord/internal/shutdown"
	"github.com/reactord/reactord/internal/store"
	"github.com/reactord/reactord/internal/supervisor"
	"github.com/reactord/reactord/internal/supervisor/services"
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

	logging.Info().
		Str("addr", cfg.Addr()).
		Str("database", cfg.Database.Path).
		Msg("Starting Reactord")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	hub := relay.NewHub()

	handler := api.NewHandler(hub, db)
	router := api.NewRouter(handler, api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "token"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	}))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddRelayService(services.NewRelayHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		if err := <-errCh; err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor tree error during shutdown")
		}
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	// Sessions are gone; wipe stored state so observers never trust a
	// stale snapshot from a dead relay.
	resetCtx, resetCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer resetCancel()
	if err := shutdown.NewCoordinator(db).Run(resetCtx); err != nil {
		logging.Error().Err(err).Msg("Shutdown state reset incomplete")
	}

	logging.Info().Msg("Reactord stopped")
}
