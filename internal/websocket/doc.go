// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package websocket pushes packing summaries to kiosk screens.

Each kiosk connection is a Client bound to one tenant's display session,
optionally narrowed to a single customer. The client observes the session
and turns every session update into frames; the Hub only tracks which
clients are connected and closes them on shutdown.

	┌──────────────┐  Observe   ┌──────────┐  send chan  ┌──────────┐
	│ display      │ ─────────▶ │ Client   │ ──────────▶ │ kiosk    │
	│ Session      │            │ (pumps)  │ ◀────────── │ browser  │
	└──────────────┘            └────┬─────┘    ping     └──────────┘
	                                 │ Register/Unregister
	                            ┌────┴─────┐
	                            │   Hub    │
	                            └──────────┘

Frames:

  - status: aggregate connection status of the tenant's subscriptions
  - summaries: the full summary list, or the one summary for the client's
    customer, plus the revalidating flag
  - pong: reply to a client ping

Every summaries frame is a complete picture, so a slow client loses its
oldest queued frame rather than the connection.
*/
package websocket
