// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/packline/config.yaml",
	"/etc/packline/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Transports accepted by NATSConfig.Transport.
const (
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3860,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "/data/packline.duckdb",
			MaxMemory:    "512MB",
			Threads:      0,
			QueryTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			Transport:      TransportNATS,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			MaxPayload:     1 << 20,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			CloseTimeout:   5 * time.Second,
			ReadyTimeout:   10 * time.Second,
		},
		Reconcile: ReconcileConfig{
			Debounce:                50 * time.Millisecond,
			Interval:                30 * time.Second,
			FetchTimeout:            10 * time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Broadcast: BroadcastConfig{
			RatePerSecond: 50,
			Burst:         100,
			SendTimeout:   5 * time.Second,
		},
		Display: DisplayConfig{
			InboxSize: 256,
		},
		Snapshot: SnapshotConfig{
			Enabled:    true,
			Path:       "/data/snapshots",
			InMemory:   false,
			TTL:        0,
			GCInterval: 10 * time.Minute,
			GCRatio:    0.5,
		},
		WebSocket: WebSocketConfig{
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
			SendBuffer:     16,
			MaxMessageSize: 4096,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration with the precedence ENV > file > defaults and
// validates the result.
func Load() (*Config, error) {
	return load(findConfigFile())
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Database
	"duckdb_path":          "database.path",
	"duckdb_max_memory":    "database.max_memory",
	"duckdb_threads":       "database.threads",
	"duckdb_query_timeout": "database.query_timeout",

	// Event bus
	"bus_transport":       "nats.transport",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_max_payload":    "nats.max_payload",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_close_timeout":  "nats.close_timeout",
	"nats_ready_timeout":  "nats.ready_timeout",

	// Reconciliation
	"reconcile_debounce":                  "reconcile.debounce",
	"reconcile_interval":                  "reconcile.interval",
	"reconcile_fetch_timeout":             "reconcile.fetch_timeout",
	"reconcile_breaker_max_requests":      "reconcile.breaker_max_requests",
	"reconcile_breaker_interval":          "reconcile.breaker_interval",
	"reconcile_breaker_timeout":           "reconcile.breaker_timeout",
	"reconcile_breaker_failure_threshold": "reconcile.breaker_failure_threshold",

	// Broadcast
	"broadcast_rate":         "broadcast.rate_per_second",
	"broadcast_burst":        "broadcast.burst",
	"broadcast_send_timeout": "broadcast.send_timeout",

	"display_inbox_size": "display.inbox_size",

	// Snapshots
	"snapshot_enabled":     "snapshot.enabled",
	"snapshot_path":        "snapshot.path",
	"snapshot_in_memory":   "snapshot.in_memory",
	"snapshot_ttl":         "snapshot.ttl",
	"snapshot_gc_interval": "snapshot.gc_interval",
	"snapshot_gc_ratio":    "snapshot.gc_ratio",

	// WebSocket
	"ws_ping_interval":    "websocket.ping_interval",
	"ws_write_timeout":    "websocket.write_timeout",
	"ws_send_buffer":      "websocket.send_buffer",
	"ws_max_message_size": "websocket.max_message_size",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - RECONCILE_DEBOUNCE -> reconcile.debounce
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
