// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package lifecycle keeps detached displays from mutating state.
//
// A Guard starts mounted. Detach flips it to unmounted, cancels its Token and
// only then runs the registered release functions, so an event that races
// with teardown always sees the guard down before its channel disappears.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token is a cancellation token handed to asynchronous work. Work checks
// Active at every resumption point and drops its result when it is false.
type Token struct {
	ctx context.Context
}

// Active reports whether the owner is still mounted.
func (t Token) Active() bool {
	return t.ctx != nil && t.ctx.Err() == nil
}

// Done is closed once the owner detaches.
func (t Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Context exposes the token as a context for APIs that take one.
func (t Token) Context() context.Context {
	return t.ctx
}

// Guard is the mounted flag plus cancellation token of one subscriber.
type Guard struct {
	mounted atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	releasers []func()
	detached  bool
}

// NewGuard returns a mounted guard whose token is derived from parent.
func NewGuard(parent context.Context) *Guard {
	ctx, cancel := context.WithCancel(parent)
	g := &Guard{ctx: ctx, cancel: cancel}
	g.mounted.Store(true)
	return g
}

// Mounted is the first thing every callback checks.
func (g *Guard) Mounted() bool {
	return g.mounted.Load()
}

// Token returns the guard's cancellation token.
func (g *Guard) Token() Token {
	return Token{ctx: g.ctx}
}

// OnDetach registers a release function. Release functions run in reverse
// registration order. Registering on a detached guard runs fn immediately.
func (g *Guard) OnDetach(fn func()) {
	g.mu.Lock()
	if g.detached {
		g.mu.Unlock()
		fn()
		return
	}
	g.releasers = append(g.releasers, fn)
	g.mu.Unlock()
}

// Detach unmounts the guard. Order: mounted=false, cancel token, release.
// Calling it again is a no-op.
func (g *Guard) Detach() {
	g.mounted.Store(false)
	g.cancel()

	g.mu.Lock()
	if g.detached {
		g.mu.Unlock()
		return
	}
	g.detached = true
	releasers := g.releasers
	g.releasers = nil
	g.mu.Unlock()

	for i := len(releasers) - 1; i >= 0; i-- {
		releasers[i]()
	}
}
