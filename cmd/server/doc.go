// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package main is the entry point for the Packline server.

Packline keeps bakery kiosk displays in step with packing progress. Staff
actions are written to DuckDB and broadcast over the event bus; every kiosk
attached to a tenant receives per-customer summaries over a WebSocket.

# Application Architecture

	RootSupervisor ("packline")
	├── DataSupervisor ("data-layer")
	│   └── Snapshot GC (BadgerDB value log)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Embedded NATS server (NATS_EMBEDDED=true)
	│   ├── Display manager (one session per displayed tenant)
	│   └── WebSocket hub (kiosk connections)
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi)

Initialization order:

 1. Configuration: koanf with defaults, config.yaml and environment
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Event bus: NATS (optionally embedded) or in-process memory
 4. Storage: DuckDB, publishing row changes to the bus
 5. Snapshot store: BadgerDB last-known-good summaries (optional)
 6. Display manager, packing service, WebSocket hub
 7. HTTP router and supervisor tree

# Configuration

	HTTP_PORT=3860
	DUCKDB_PATH=/data/packline.duckdb
	BUS_TRANSPORT=nats           # nats or memory
	NATS_EMBEDDED=true
	NATS_URL=nats://127.0.0.1:4222
	RECONCILE_DEBOUNCE=50ms
	RECONCILE_INTERVAL=30s
	SNAPSHOT_ENABLED=true
	SNAPSHOT_PATH=/data/snapshots
	CORS_ORIGINS=https://kiosk.example.com
	LOG_LEVEL=info
	LOG_FORMAT=json

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server, closes kiosk connections, detaches display sessions and stops the
embedded NATS server; main then drains pending broadcasts and closes the
bus, snapshot store and database.
*/
package main
