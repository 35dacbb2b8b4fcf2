// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package services provides suture.Service wrappers for Packline components.

Each wrapper turns a component's own lifecycle (ListenAndServe, RunWithContext,
Shutdown, periodic maintenance) into suture's context-aware Serve and names
itself through fmt.Stringer for supervisor logs.

# Available Services

HTTPServerService runs the chi router behind *http.Server and drains it on
shutdown.

WebSocketHubService runs the kiosk connection hub.

NATSServerService owns the embedded NATS server. It shuts the server down
with the tree and terminates the tree if the server dies underneath it.

SnapshotGCService runs BadgerDB value log garbage collection for the
display snapshot store.

display.Manager implements suture.Service itself and needs no wrapper.

# Interfaces

Wrappers depend on small interfaces (HTTPServer, ContextHub, EmbeddedNATS,
SnapshotCollector) rather than concrete types so they can be tested with
fakes.
*/
package services
