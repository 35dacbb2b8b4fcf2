// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package engine applies events to cached packing summaries without a round
trip to storage.

This is the optimistic half of a display: a staff member packs a loaf and
the kiosk shows it within one broadcast hop, long before the canonical
summaries have been re-read. The reconciler later replaces whatever the
engine produced with what storage says.

# Overview

Both entry points are pure functions:

	ApplyBroadcast(snap, msg) -> (next, Outcome)
	ApplyChange(snap, ev)     -> (next, Outcome)

They never mutate snap. Affected summaries are cloned into a workset,
changed there and committed as a new *cache.Snapshot. When nothing resident
matches the event the input snapshot is returned unchanged, so callers can
detect no-ops by pointer identity (Outcome.Changed is next != snap).

# Event Handling

	ITEM_PACKED / ITEM_UNPACKED   packed ± 1 for the customer, clamped to
	                              [0, total]; line item status and quantity
	                              updated in its product rollup
	ALL_PACKED                    every listed, previously unpacked item
	                              packed in one pass; each affected customer
	                              recalculated once
	PRODUCTS_SELECTED / CLEARED   no local delta; ForcedRevalidation
	line_items change             item contribution removed and re-added
	                              (insert adds, update replaces, delete
	                              removes); SoftRevalidation
	orders, sessions, selections  structural; ForcedRevalidation

An item already in the requested state is skipped, so a duplicate
ITEM_PACKED does not count twice. Customers that are not cached are
ignored; the next reconcile brings them in.

# Revalidation

Outcome.Revalidate tells the caller how much it should trust the result:

  - NoRevalidation: the delta is exact
  - SoftRevalidation: the delta is probably right, confirm in the background
  - ForcedRevalidation: no delta was possible, fetch now and flag the
    display as revalidating

# Usage Example

	snap := store.Snapshot(tenant)
	next, out := engine.ApplyBroadcast(snap, msg)
	if out.Changed {
	    store.ApplyDelta(tenant, func(*cache.Snapshot) *cache.Snapshot { return next })
	}
	if out.Revalidate == engine.ForcedRevalidation {
	    rec.Trigger(reconciler.Forced)
	}

# Ordering

The engine does not look at timestamps. Stale broadcasts are filtered
before they get here by the subscription handle's last applied timestamp
(see lifecycle.Handle).

# Thread Safety

All functions are safe for concurrent use; they share no state. Snapshots
are immutable once committed.
*/
package engine
