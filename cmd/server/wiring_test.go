// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/packline/internal/config"
	"github.com/tomtom215/packline/internal/eventbus"
)

func TestInitBus(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		bus, srv, err := initBus(&config.NATSConfig{Transport: config.TransportMemory})
		if err != nil {
			t.Fatalf("initBus: %v", err)
		}
		defer bus.Close()
		if srv != nil {
			t.Error("memory transport should not start a server")
		}
		if bus.Transport() != eventbus.TransportMemory || !bus.Connected() {
			t.Errorf("transport = %s, connected = %v", bus.Transport(), bus.Connected())
		}
	})

	t.Run("embedded nats", func(t *testing.T) {
		t.Parallel()
		bus, srv, err := initBus(&config.NATSConfig{
			Transport:      config.TransportNATS,
			URL:            "nats://ignored:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           -1,
			MaxReconnects:  -1,
			ReconnectWait:  100 * time.Millisecond,
			CloseTimeout:   time.Second,
			ReadyTimeout:   5 * time.Second,
		})
		if err != nil {
			t.Fatalf("initBus: %v", err)
		}
		defer func() {
			_ = bus.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		if srv == nil || !srv.Running() {
			t.Fatal("embedded server should be running")
		}
		if bus.Transport() != eventbus.TransportNATS {
			t.Errorf("transport = %s", bus.Transport())
		}
	})
}

func TestInitSnapshots(t *testing.T) {
	t.Parallel()

	store, err := initSnapshots(&config.SnapshotConfig{Enabled: false})
	if err != nil || store != nil {
		t.Fatalf("disabled: store = %v, err = %v", store, err)
	}

	store, err = initSnapshots(&config.SnapshotConfig{Enabled: true, InMemory: true, TTL: time.Hour})
	if err != nil {
		t.Fatalf("in-memory: %v", err)
	}
	defer store.Close()
	if err := store.Save("t1", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestConfigConversions(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Reconcile: config.ReconcileConfig{
			Debounce:                20 * time.Millisecond,
			Interval:                time.Minute,
			FetchTimeout:            3 * time.Second,
			BreakerMaxRequests:      2,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          5 * time.Second,
			BreakerFailureThreshold: 4,
		},
		Display:   config.DisplayConfig{InboxSize: 64},
		Broadcast: config.BroadcastConfig{RatePerSecond: 10, Burst: 20, SendTimeout: time.Second},
		WebSocket: config.WebSocketConfig{PingInterval: 15 * time.Second, WriteTimeout: 5 * time.Second, SendBuffer: 8, MaxMessageSize: 1024},
	}

	d := displayConfig(cfg)
	if d.InboxSize != 64 || d.Reconcile.Debounce != 20*time.Millisecond || d.Reconcile.Interval != time.Minute {
		t.Errorf("displayConfig = %+v", d)
	}
	if d.Reconcile.Breaker.FailureThreshold != 4 || d.Reconcile.Breaker.MaxRequests != 2 {
		t.Errorf("breaker = %+v", d.Reconcile.Breaker)
	}

	s := senderConfig(&cfg.Broadcast)
	if s.RatePerSecond != 10 || s.Burst != 20 || s.SendTimeout != time.Second {
		t.Errorf("senderConfig = %+v", s)
	}

	h := hubConfig(&cfg.WebSocket)
	if h.PingInterval != 15*time.Second || h.SendBuffer != 8 || h.MaxMessageSize != 1024 {
		t.Errorf("hubConfig = %+v", h)
	}
}
