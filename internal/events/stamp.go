// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package events

import (
	"sync"

	"github.com/tomtom215/packline/internal/clock"
)

// Clock hands out strictly increasing unix millisecond timestamps for
// outgoing broadcasts, even if the wall clock steps backwards.
type Clock struct {
	source clock.Clock
	mu     sync.Mutex
	last   int64
}

// NewClock returns a Clock reading from source.
func NewClock(source clock.Clock) *Clock {
	return &Clock{source: source}
}

// Next returns max(now, last+1).
func (c *Clock) Next() int64 {
	now := c.source.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}
