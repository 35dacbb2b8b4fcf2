// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package config loads Packline's configuration.

Sources are layered, later ones winning:
  - built-in defaults (defaultConfig)
  - an optional YAML file (CONFIG_PATH, ./config.yaml, /etc/packline/config.yaml)
  - environment variables, mapped explicitly in envTransformFunc

Unknown environment variables are ignored so the process environment cannot
leak into configuration by accident.
*/
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Display   DisplayConfig   `koanf:"display"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings for canonical storage.
type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"` // 0 = runtime.NumCPU()
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// NATSConfig selects and tunes the event bus transport.
type NATSConfig struct {
	// Transport is "nats" or "memory". Memory only works within one process.
	Transport      string        `koanf:"transport"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	MaxPayload     int32         `koanf:"max_payload"`
	MaxReconnects  int           `koanf:"max_reconnects"` // -1 = forever
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	ReadyTimeout   time.Duration `koanf:"ready_timeout"`
}

// ReconcileConfig controls revalidation against storage.
type ReconcileConfig struct {
	Debounce     time.Duration `koanf:"debounce"`
	Interval     time.Duration `koanf:"interval"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// BroadcastConfig throttles staff broadcasts per tenant.
type BroadcastConfig struct {
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	SendTimeout   time.Duration `koanf:"send_timeout"`
}

// DisplayConfig tunes server-side display sessions.
type DisplayConfig struct {
	InboxSize int `koanf:"inbox_size"`
}

// SnapshotConfig controls last-known-good persistence in BadgerDB.
type SnapshotConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Path     string        `koanf:"path"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"` // 0 = keep forever


	// GCInterval spaces value log garbage collection runs. 0 disables it.
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// WebSocketConfig tunes kiosk connections.
type WebSocketConfig struct {
	PingInterval   time.Duration `koanf:"ping_interval"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	SendBuffer     int           `koanf:"send_buffer"`
	MaxMessageSize int64         `koanf:"max_message_size"`
}

// SecurityConfig holds the HTTP edge protections. Authentication is handled
// in front of Packline.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig is handed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
