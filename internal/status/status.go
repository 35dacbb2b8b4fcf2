// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package status folds per-subscription connection states into one
// operator-facing status.
package status

import (
	"sort"
	"sync"
)

// State is the connection state of a subscription or of a whole display.
type State string

const (
	Connecting   State = "connecting"
	Connected    State = "connected"
	Disconnected State = "disconnected"
)

// Aggregate combines subscription states: disconnected if any is
// disconnected, connected if all are connected, otherwise connecting. No
// subscriptions at all counts as connecting.
func Aggregate(states ...State) State {
	if len(states) == 0 {
		return Connecting
	}
	all := true
	for _, s := range states {
		if s == Disconnected {
			return Disconnected
		}
		if s != Connected {
			all = false
		}
	}
	if all {
		return Connected
	}
	return Connecting
}

// Aggregator tracks named subscriptions and reports aggregate changes.
type Aggregator struct {
	mu       sync.Mutex
	subs     map[string]State
	current  State
	onChange func(State)
}

// NewAggregator returns an empty aggregator. onChange, if set, is called
// with the new aggregate whenever it differs from the previous one.
func NewAggregator(onChange func(State)) *Aggregator {
	return &Aggregator{subs: map[string]State{}, current: Connecting, onChange: onChange}
}

// Track adds a subscription in the connecting state.
func (a *Aggregator) Track(id string) {
	a.update(func() { a.subs[id] = Connecting })
}

// Set records a transition for id. Unknown ids are tracked implicitly.
func (a *Aggregator) Set(id string, s State) {
	a.update(func() { a.subs[id] = s })
}

// Remove stops tracking id.
func (a *Aggregator) Remove(id string) {
	a.update(func() { delete(a.subs, id) })
}

func (a *Aggregator) update(fn func()) {
	a.mu.Lock()
	fn()
	states := make([]State, 0, len(a.subs))
	for _, s := range a.subs {
		states = append(states, s)
	}
	next := Aggregate(states...)
	changed := next != a.current
	a.current = next
	a.mu.Unlock()

	if changed && a.onChange != nil {
		a.onChange(next)
	}
}

// Status returns the current aggregate.
func (a *Aggregator) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Subscription is one tracked id and its state.
type Subscription struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

// Subscriptions lists tracked subscriptions ordered by id.
func (a *Aggregator) Subscriptions() []Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Subscription, 0, len(a.subs))
	for id, s := range a.subs {
		out = append(out, Subscription{ID: id, State: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
