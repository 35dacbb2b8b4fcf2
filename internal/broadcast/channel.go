// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package broadcast is the ephemeral message channel between staff actions
// and displays. Messages are only seen by handles subscribed when they are
// sent; there is no replay.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/packline/internal/eventbus"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/lifecycle"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/status"
)

var (
	// ErrDisconnected is returned by operations on a disconnected handle.
	ErrDisconnected = errors.New("broadcast handle disconnected")

	// ErrAlreadySubscribed is returned when Subscribe is called twice on one handle.
	ErrAlreadySubscribed = errors.New("broadcast handle already subscribed")
)

// Channel opens broadcast handles on an event bus.
type Channel struct {
	bus *eventbus.Bus
}

// NewChannel returns a Channel over bus.
func NewChannel(bus *eventbus.Bus) *Channel {
	return &Channel{bus: bus}
}

// Handle is one connection to a topic. It may send, subscribe, or both.
type Handle struct {
	bus   *eventbus.Bus
	sub   *lifecycle.Handle
	mu    sync.Mutex
	using bool
}

// Connect opens a handle on topic. The handle lives until Disconnect or
// until ctx ends.
func (c *Channel) Connect(ctx context.Context, topic string) *Handle {
	return &Handle{bus: c.bus, sub: lifecycle.NewHandle(ctx, topic)}
}

// Topic returns the handle's topic.
func (h *Handle) Topic() string { return h.sub.Topic() }

// Lifecycle exposes the handle's guard and ordering state.
func (h *Handle) Lifecycle() *lifecycle.Handle { return h.sub }

// Send publishes msg on the handle's topic.
func (h *Handle) Send(ctx context.Context, msg events.BroadcastMessage) error {
	if !h.sub.Guard().Mounted() {
		return ErrDisconnected
	}
	data, err := events.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	wm := message.NewMessage(uuid.NewString(), data)
	wm.Metadata.Set("type", string(msg.Type()))
	wm.SetContext(ctx)
	if err := h.bus.Publish(h.Topic(), wm); err != nil {
		return fmt.Errorf("publish %s on %s: %w", msg.Type(), h.Topic(), err)
	}
	return nil
}

// Subscribe delivers decoded messages to onMessage until the handle is
// disconnected. Status transitions go to onStatus, which may be nil.
// Messages are dropped once the guard is down, before onMessage runs.
func (h *Handle) Subscribe(onMessage func(events.BroadcastMessage), onStatus func(status.State, error)) error {
	if onStatus == nil {
		onStatus = func(status.State, error) {}
	}
	guard := h.sub.Guard()
	if !guard.Mounted() {
		return ErrDisconnected
	}
	h.mu.Lock()
	if h.using {
		h.mu.Unlock()
		return ErrAlreadySubscribed
	}
	h.using = true
	h.mu.Unlock()

	onStatus(status.Connecting, nil)
	ctx := guard.Token().Context()
	msgs, err := h.bus.Subscribe(ctx, h.Topic())
	if err != nil {
		err = fmt.Errorf("subscribe %s: %w", h.Topic(), err)
		onStatus(status.Disconnected, err)
		return err
	}

	var mu sync.Mutex
	report := func(st status.State, err error) {
		mu.Lock()
		defer mu.Unlock()
		if guard.Mounted() {
			onStatus(st, err)
		}
	}
	unwatch := h.bus.Watch(func(connected bool) {
		if connected {
			report(status.Connected, nil)
		} else {
			report(status.Connecting, nil)
		}
	})
	guard.OnDetach(unwatch)
	report(status.Connected, nil)

	go func() {
		log := logging.WithComponent("broadcast")
		for wm := range msgs {
			msg, err := events.Decode(wm.Payload)
			wm.Ack()
			if err != nil {
				metrics.RecordEventDropped("broadcast", "decode")
				log.Warn().Err(err).Str("topic", h.Topic()).Msg("Dropping malformed broadcast")
				continue
			}
			if !guard.Mounted() {
				metrics.RecordEventDropped("broadcast", "detached")
				continue
			}
			onMessage(msg)
		}
		if guard.Mounted() {
			report(status.Disconnected, errors.New("broadcast subscription closed by transport"))
		}
	}()
	return nil
}

// Disconnect lowers the guard and then releases the subscription.
// Calling it more than once is harmless.
func (h *Handle) Disconnect() {
	h.sub.Close()
}
