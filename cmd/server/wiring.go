// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/packline/internal/broadcast"
	"github.com/tomtom215/packline/internal/config"
	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/eventbus"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/reconciler"
	"github.com/tomtom215/packline/internal/snapshot"
	"github.com/tomtom215/packline/internal/websocket"
)

// initBus connects the event bus. With the embedded server enabled the
// server is started first and its client URL replaces NATS_URL; the caller
// owns the returned server.
func initBus(cfg *config.NATSConfig) (*eventbus.Bus, *eventbus.EmbeddedServer, error) {
	if cfg.Transport == config.TransportMemory {
		logging.Warn().Msg("Using in-memory event bus; broadcasts stay within this process")
		return eventbus.NewMemory(eventbus.NewLogger()), nil, nil
	}

	url := cfg.URL
	var srv *eventbus.EmbeddedServer
	if cfg.EmbeddedServer {
		var err error
		srv, err = eventbus.NewEmbeddedServer(eventbus.ServerConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			MaxPayload:   cfg.MaxPayload,
			ReadyTimeout: cfg.ReadyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	bus, err := eventbus.NewNATS(eventbus.NATSConfig{
		URL:           url,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
		CloseTimeout:  cfg.CloseTimeout,
	}, eventbus.NewLogger())
	if err != nil {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
		}
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return bus, srv, nil
}

// initSnapshots opens the snapshot store, or returns nil when disabled.
func initSnapshots(cfg *config.SnapshotConfig) (*snapshot.Store, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Snapshot store disabled; kiosks start empty until the first fetch")
		return nil, nil
	}
	return snapshot.Open(snapshot.Options{
		Path:     cfg.Path,
		InMemory: cfg.InMemory,
		TTL:      cfg.TTL,
	})
}

func reconcilerConfig(cfg *config.ReconcileConfig) reconciler.Config {
	return reconciler.Config{
		Debounce:     cfg.Debounce,
		Interval:     cfg.Interval,
		FetchTimeout: cfg.FetchTimeout,
		Breaker: reconciler.BreakerConfig{
			MaxRequests:      cfg.BreakerMaxRequests,
			Interval:         cfg.BreakerInterval,
			Timeout:          cfg.BreakerTimeout,
			FailureThreshold: cfg.BreakerFailureThreshold,
		},
	}
}

func displayConfig(cfg *config.Config) display.Config {
	return display.Config{
		Reconcile: reconcilerConfig(&cfg.Reconcile),
		InboxSize: cfg.Display.InboxSize,
	}
}

func senderConfig(cfg *config.BroadcastConfig) broadcast.SenderConfig {
	return broadcast.SenderConfig{
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		SendTimeout:   cfg.SendTimeout,
	}
}

func hubConfig(cfg *config.WebSocketConfig) websocket.Config {
	return websocket.Config{
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
	}
}
