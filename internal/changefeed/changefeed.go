// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package changefeed carries row-level change events from storage to
// displays over the event bus, one topic per (tenant, table).
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/packline/internal/eventbus"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

// ErrSubscriptionClosed is reported through OnStatus when the transport ends
// a subscription the caller did not cancel.
var ErrSubscriptionClosed = errors.New("change subscription closed by transport")

// Callbacks receive a subscription's events and status transitions. They run
// on the subscription's delivery goroutine, one at a time.
type Callbacks struct {
	OnEvent  func(ev events.ChangeEvent)
	OnStatus func(state status.State, err error)
}

// Source subscribes to change events.
type Source struct {
	bus *eventbus.Bus
}

// NewSource returns a Source reading from bus.
func NewSource(bus *eventbus.Bus) *Source {
	return &Source{bus: bus}
}

// Subscription is an open change subscription.
type Subscription struct {
	tenant models.TenantID
	table  string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe delivers change events for (tenant, table) that pass filter
// until the subscription is cancelled or ctx ends. A failed subscribe is
// reported to OnStatus as disconnected and returned.
func (s *Source) Subscribe(ctx context.Context, tenant models.TenantID, table string, filter events.Filter, cb Callbacks) (*Subscription, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	onStatus := cb.OnStatus
	if onStatus == nil {
		onStatus = func(status.State, error) {}
	}
	onStatus(status.Connecting, nil)

	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := s.bus.Subscribe(subCtx, events.ChangeTopic(tenant, table))
	if err != nil {
		cancel()
		err = fmt.Errorf("subscribe %s changes for %s: %w", table, tenant, err)
		onStatus(status.Disconnected, err)
		return nil, err
	}

	sub := &Subscription{tenant: tenant, table: table, cancel: cancel, done: make(chan struct{})}

	var mu sync.Mutex
	report := func(st status.State, err error) {
		mu.Lock()
		defer mu.Unlock()
		if subCtx.Err() == nil {
			onStatus(st, err)
		}
	}
	unwatch := s.bus.Watch(func(connected bool) {
		if connected {
			report(status.Connected, nil)
		} else {
			report(status.Connecting, nil)
		}
	})

	report(status.Connected, nil)

	go func() {
		defer close(sub.done)
		defer unwatch()
		log := logging.WithComponent("changefeed")
		for msg := range msgs {
			ev, ok := decode(msg, tenant, table)
			msg.Ack()
			if !ok {
				metrics.RecordEventDropped("change", "decode")
				log.Warn().Str("tenant", string(tenant)).Str("table", table).Msg("Dropping malformed change event")
				continue
			}
			if !filter.Matches(&ev) {
				continue
			}
			if cb.OnEvent != nil && subCtx.Err() == nil {
				cb.OnEvent(ev)
			}
		}
		if ctx.Err() == nil && subCtx.Err() == nil {
			report(status.Disconnected, ErrSubscriptionClosed)
		}
	}()
	return sub, nil
}

func decode(msg *message.Message, tenant models.TenantID, table string) (events.ChangeEvent, bool) {
	var ev events.ChangeEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, false
	}
	if err := ev.Validate(); err != nil {
		return ev, false
	}
	return ev, ev.TenantID == tenant && ev.Table == table
}

// Unsubscribe stops delivery. It does not wait for the delivery goroutine;
// use Done for that. Safe to call any number of times.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Done is closed when the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Publisher emits change events. Storage calls Emit after each committed
// mutation.
type Publisher struct {
	bus *eventbus.Bus
}

// NewPublisher returns a Publisher writing to bus.
func NewPublisher(bus *eventbus.Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Emit publishes ev on its (tenant, table) topic.
func (p *Publisher) Emit(ctx context.Context, ev events.ChangeEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("table", ev.Table)
	msg.Metadata.Set("event_type", string(ev.EventType))
	msg.SetContext(ctx)

	err = p.bus.Publish(events.ChangeTopic(ev.TenantID, ev.Table), msg)
	metrics.RecordChangePublished(ev.Table, err)
	if err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}
