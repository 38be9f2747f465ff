// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Command server runs the Orbit troubleshooting service: the snapshot
// refresh scheduler and the HTTP API, under a suture supervision tree.
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

	"github.com/andygivens/orbit/internal/api"
	"github.com/andygivens/orbit/internal/auth"
	"github.com/andygivens/orbit/internal/cache"
	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/flows"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/operations"
	"github.com/andygivens/orbit/internal/providers"
	"github.com/andygivens/orbit/internal/supervisor"
	"github.com/andygivens/orbit/internal/troubleshoot"
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
		Int("providers", len(cfg.EnabledProviders())).
		Str("past_window", cfg.Reconcile.PastWindow).
		Str("future_window", cfg.Reconcile.FutureWindow).
		Msg("Starting Orbit")

	registry, err := providers.NewRegistry(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build provider registry")
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing provider registry")
		}
	}()

	// The flows client is nil when no sync engine URL is configured;
	// groups then degrade to unmapped instead of failing.
	var flowSource flows.Source
	if client := flows.NewClient(cfg.Flows); client != nil {
		flowSource = client
		logging.Info().Str("url", cfg.Flows.URL).Msg("Flow history source configured")
	} else {
		logging.Warn().Msg("No flow history source configured, direction labels will be unmapped")
	}

	ops, err := operations.Open(cfg.Operations.Path, cfg.Operations.Retention)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Operations.Path).Msg("Failed to open operation store")
	}
	defer func() {
		if err := ops.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing operation store")
		}
	}()

	refresher := troubleshoot.NewRefresher(
		registry, flowSource, cfg.Flows.SyncID, cfg.Reconcile.FetchLimit,
		cfg.Reconcile.PastWindow, cfg.Reconcile.FutureWindow,
	)
	scheduler := troubleshoot.NewScheduler(refresher, cfg.Reconcile.RefreshInterval)
	coordinator := troubleshoot.NewCoordinator(registry, ops, refresher, scheduler.TriggerRefresh)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	credentials := auth.NewCredentialChecker(&cfg.Security)

	groupCache := cache.New(cfg.Reconcile.RefreshInterval)

	handlers := api.NewHandlers(cfg, registry, refresher, coordinator, ops,
		jwtManager, credentials, groupCache)
	router := api.NewRouter(cfg, handlers, auth.NewMiddleware(jwtManager))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(scheduler)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

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

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Orbit stopped gracefully")
}
