// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package reconciler

import (
	"sync"
	"time"

	"github.com/tomtom215/packline/internal/clock"
)

// Debouncer coalesces bursts of triggers into one call. The first trigger
// opens a fixed window; triggers inside the window are absorbed and do not
// extend it. fn runs once when the window closes.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	pending bool
	timer   clock.Timer
	stopped bool
}

// NewDebouncer returns a Debouncer that calls fn delay after the first
// trigger of each burst.
func NewDebouncer(clk clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: clk, delay: delay, fn: fn}
}

// Trigger opens a window if none is pending. It reports whether this call
// opened the window.
func (d *Debouncer) Trigger() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending || d.stopped {
		return false
	}
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, d.fire)
	return true
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a window is open.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any open window and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
