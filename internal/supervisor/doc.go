// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package supervisor provides process supervision for Packline using suture v4.

Every long-running component runs under a hierarchical supervisor tree with
automatic restart, failure isolation and graceful shutdown.

# Overview

	RootSupervisor ("packline")
	├── DataSupervisor ("data-layer")
	│   └── SnapshotGCService (if SNAPSHOT_ENABLED and SNAPSHOT_GC_INTERVAL > 0)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── NATSServerService (if NATS_EMBEDDED)
	│   ├── display.Manager
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A display manager crash does not take the HTTP API down; /summaries then
falls back to reading storage directly.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewComponentSlogLogger("supervisor"), supervisor.TreeConfig{
	    ShutdownTimeout: 10 * time.Second,
	})
	if err != nil {
	    return err
	}
	tree.AddMessagingService(displays)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

Supervisor events (starts, failures, backoff) are logged through sutureslog,
bridged to zerolog by logging.NewComponentSlogLogger.

# Services

Wrappers that adapt Packline components to suture.Service live in the
services subpackage.
*/
package supervisor
