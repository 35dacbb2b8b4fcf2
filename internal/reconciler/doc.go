// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package reconciler re-fetches canonical packing summaries to correct drift
left by optimistic updates.

Broadcasts can be lost, duplicated or reordered, and the engine cannot
compute a delta for structural events at all. The reconciler is what makes
a display converge anyway: it reads storage's view of the tenant and hands
it to the session, which replaces its cache wholesale.

# Triggers

	Forced     structural events, first attach     fetch starts at once
	Soft       item level events                   debounced (default 50ms)
	Periodic   timer (default 30s)                 soft, low priority

Soft and forced fetches differ only in whether observers are told one is
in flight. Neither blocks the caller or clears visible summaries.

# Debouncing

Debouncer opens a fixed window on the first trigger of a burst. Triggers
inside the window are absorbed (counted by ReconcileCoalesced) and do not
extend it, so a steady stream of packs still reconciles every window:

	trigger ──┬── trigger ── trigger ──┐
	          └──────── 50ms ──────────┴─> fetch

# Single Flight

At most one fetch per tenant is in flight. Triggers that arrive while a
fetch runs queue exactly one follow-up, which keeps the strongest mode
requested. Result.Pending tells the session that another fetch is coming.

# Failure Handling

Fetches run through a sony/gobreaker circuit breaker (see BreakerConfig).
A failed fetch is delivered with Err set; the session keeps its last known
good summaries and the next trigger retries. While the breaker is open,
fetches fail fast instead of piling onto a struggling database.

# Lifecycle

A fetch is never aborted when the owning display detaches. Its result is
dropped instead: deliver is only called while the lifecycle.Token passed to
New is active.

# Usage Example

	rec := reconciler.New(reconciler.DefaultConfig(), tenant, db, clock.Real(),
	    guard.Token(), func(r reconciler.Result) {
	        post(func() { handleResult(r) })
	    })
	rec.Start()
	defer rec.Close()

	rec.Trigger(reconciler.Soft)

# Thread Safety

Trigger, Start, Close and BreakerState are safe for concurrent use. deliver
runs on the fetching goroutine; callers hand the result to their own event
loop rather than touching shared state from it.
*/
package reconciler
