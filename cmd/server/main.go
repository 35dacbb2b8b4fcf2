// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/packline/internal/api"
	"github.com/tomtom215/packline/internal/broadcast"
	"github.com/tomtom215/packline/internal/cache"
	"github.com/tomtom215/packline/internal/changefeed"
	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/config"
	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/packing"
	"github.com/tomtom215/packline/internal/storage"
	"github.com/tomtom215/packline/internal/supervisor"
	"github.com/tomtom215/packline/internal/supervisor/services"
	"github.com/tomtom215/packline/internal/websocket"
)

//nolint:gocyclo // sequential wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("transport", cfg.NATS.Transport).
		Str("db_path", cfg.Database.Path).
		Bool("snapshots", cfg.Snapshot.Enabled).
		Msg("Starting Packline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewComponentSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === EVENT BUS ===

	bus, natsServer, err := initBus(&cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	if natsServer != nil {
		tree.AddMessagingService(services.NewNATSServerService(natsServer))
	}

	// === STORAGE ===

	db, err := storage.New(&cfg.Database, changefeed.NewPublisher(bus))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	logging.Info().Msg("Database initialized successfully")

	snapshots, err := initSnapshots(&cfg.Snapshot)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	if snapshots != nil && cfg.Snapshot.GCInterval > 0 {
		tree.AddDataService(services.NewSnapshotGCService(snapshots, cfg.Snapshot.GCInterval, cfg.Snapshot.GCRatio))
	}

	// === DISPLAYS AND STAFF ACTIONS ===

	channel := broadcast.NewChannel(bus)
	sender := broadcast.NewSender(channel, senderConfig(&cfg.Broadcast))
	staff := packing.NewService(db, sender, events.NewClock(clock.Real()))

	deps := display.Deps{
		Channel: channel,
		Changes: changefeed.NewSource(bus),
		Fetcher: db,
		Store:   cache.New(),
		Clock:   clock.Real(),
	}
	if snapshots != nil {
		deps.Snapshots = snapshots
	}
	displays := display.NewManager(deps, displayConfig(cfg))

	hub := websocket.NewHub(hubConfig(&cfg.WebSocket))

	handler := api.NewHandler(api.Dependencies{
		Store:          db,
		Staff:          staff,
		Sessions:       displays,
		Bus:            bus,
		Hub:            hub,
		AllowedOrigins: cfg.Security.CORSOrigins,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddMessagingService(displays)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
		cancel()
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// === RELEASE RESOURCES ===

	displays.Close()
	sender.Wait()
	if err := bus.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event bus")
	}
	if snapshots != nil {
		if err := snapshots.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}

	logging.Info().Msg("Packline stopped gracefully")
}
