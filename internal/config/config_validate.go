// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package config

import (
	"fmt"
	"strings"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateNATS,
		c.validateReconcile,
		c.validateBroadcast,
		c.validateSnapshot,
		c.validateWebSocket,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateNATS() error {
	switch c.NATS.Transport {
	case TransportMemory:
		return nil
	case TransportNATS:
	default:
		return fmt.Errorf("BUS_TRANSPORT must be %q or %q, got %q", TransportNATS, TransportMemory, c.NATS.Transport)
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < -1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between -1 and 65535, got %d", c.NATS.Port)
		}
		return nil
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls:// when the embedded server is disabled")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	r := c.Reconcile
	if r.Debounce < 0 || r.Interval < 0 || r.FetchTimeout < 0 {
		return fmt.Errorf("reconcile durations must not be negative")
	}
	if r.BreakerFailureThreshold == 0 {
		return fmt.Errorf("RECONCILE_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateBroadcast() error {
	if c.Broadcast.RatePerSecond < 0 {
		return fmt.Errorf("BROADCAST_RATE must not be negative")
	}
	if c.Broadcast.RatePerSecond > 0 && c.Broadcast.Burst < 1 {
		return fmt.Errorf("BROADCAST_BURST must be at least 1 when throttling is on")
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if c.Snapshot.Enabled && !c.Snapshot.InMemory && c.Snapshot.Path == "" {
		return fmt.Errorf("SNAPSHOT_PATH is required when snapshots are enabled on disk")
	}
	if c.Snapshot.TTL < 0 {
		return fmt.Errorf("SNAPSHOT_TTL cannot be negative")
	}
	if c.Snapshot.GCInterval > 0 && (c.Snapshot.GCRatio <= 0 || c.Snapshot.GCRatio >= 1) {
		return fmt.Errorf("SNAPSHOT_GC_RATIO must be between 0 and 1, got %v", c.Snapshot.GCRatio)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WS_PING_INTERVAL must be positive")
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "off", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
