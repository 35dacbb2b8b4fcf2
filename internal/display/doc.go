// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package display runs display sessions.

A session is one display's view of a tenant. It subscribes to both event
sources, applies events through the engine into the cache, schedules
reconciliation and tells observers (kiosk websockets, the API) about every
visible change.

# Architecture

	 broadcast.Channel          changefeed.Source
	 packing-updates-<t>        changes-<t>-<table>
	 active-products-<t>
	        │                          │
	        └────────────┬─────────────┘
	                     ▼
	              ┌─────────────┐      ┌──────────────┐
	              │   inbox     │◀─────│  reconciler  │ results, timers
	              └──────┬──────┘      └──────────────┘
	                     │ one handler at a time
	                     ▼
	              engine.Apply* ──▶ cache.Store ──▶ observers
	                                    │
	                                    ▼
	                             snapshot.Store (last known good)

# Event Loop

Every input (broadcast deliveries, change events, status transitions,
reconcile results, timer fires) is posted to the session's inbox and run
on its single goroutine. A handler's cache mutation is never interleaved
with another's, and observers see updates in the order they happened.
Network work runs elsewhere and posts its completion back.

# Lifecycle

Attach starts the loop, connects the subscriptions and requests a forced
fetch. With a snapshot store configured, the cache is first warmed with the
tenant's last reconciled summaries so a restarted kiosk shows something
before that fetch returns.

Detach drops the lifecycle guard first, then releases subscriptions, then
waits for the loop to exit. Anything still in flight after that, a fetch
or a late delivery, sees the guard down and is discarded.

# Manager

Manager shares one session per tenant between everything displaying it
and reference-counts holders:

	s, release, err := manager.Acquire(tenant)
	if err != nil {
	    return err
	}
	defer release()

	stop := s.Observe(func(u display.Update) {
	    // u.Summaries, u.Status, u.Revalidating
	})
	defer stop()

The session detaches when the last holder releases it. The tenant stays
reserved until that Detach returns, so a kiosk reconnecting at the same
moment waits for the old session rather than racing its teardown.

Manager implements suture.Service and runs in the messaging layer of the
supervisor tree.

# Error Handling

Subscription failures do not fail Attach. They surface as a disconnected
status, logged at warn, and the session keeps serving last known
summaries. A fetch failure leaves the cache untouched.

# Thread Safety

Session accessors (Snapshot, Status, Revalidating, Observe, Revalidate) and
all Manager methods are safe for concurrent use. Observers run on the
session goroutine and must return promptly.
*/
package display
