// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package lifecycle

import (
	"context"
	"sync"
)

// Handle is a display's subscription to one topic. It owns a Guard and
// remembers the timestamp of the last broadcast it let through.
type Handle struct {
	topic string
	guard *Guard

	mu   sync.Mutex
	last int64
}

// NewHandle returns a mounted handle for topic.
func NewHandle(parent context.Context, topic string) *Handle {
	return &Handle{topic: topic, guard: NewGuard(parent)}
}

// Topic returns the subscribed topic name.
func (h *Handle) Topic() string { return h.topic }

// Guard returns the handle's lifecycle guard.
func (h *Handle) Guard() *Guard { return h.guard }

// Admit decides whether a broadcast stamped ts may be applied. It refuses
// everything once the guard is down and anything older than the last
// admitted stamp. Equal stamps are admitted since distinct messages can
// share a millisecond.
func (h *Handle) Admit(ts int64) bool {
	if !h.guard.Mounted() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ts < h.last {
		return false
	}
	h.last = ts
	return true
}

// LastApplied returns the last admitted timestamp.
func (h *Handle) LastApplied() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Close detaches the handle's guard, which releases the channel.
func (h *Handle) Close() {
	h.guard.Detach()
}
