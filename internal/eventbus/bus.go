// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package eventbus is the transport under the change feed and the broadcast
// channel: Watermill publishers and subscribers over core NATS, or over an
// in-process Go channel for single-node setups and tests.
//
// Broadcasts are ephemeral, so NATS runs without JetStream: a subscriber only
// sees messages published while it is subscribed.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Transport names.
const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

// ErrClosed is returned by operations on a closed Bus.
var ErrClosed = errors.New("event bus closed")

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// Bus publishes and subscribes Watermill messages by topic.
type Bus struct {
	transport string
	pub       message.Publisher
	sub       message.Subscriber
	shared    bool // pub and sub are the same object
	logger    watermill.LoggerAdapter

	connected atomic.Bool

	mu        sync.Mutex
	watchers  map[int]func(connected bool)
	nextWatch int
	closed    bool
}

func newBus(transport string, logger watermill.LoggerAdapter) *Bus {
	return &Bus{transport: transport, logger: logger, watchers: map[int]func(bool){}}
}

// NewMemory returns an in-process bus. Publish blocks until every current
// subscriber has acknowledged the message, which keeps per-topic delivery
// order intact.
func NewMemory(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = NewLogger()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	b := newBus(TransportMemory, logger)
	b.pub = ch
	b.sub = ch
	b.shared = true
	b.connected.Store(true)
	return b
}

// NewNATS connects a publisher and a fan-out subscriber to NATS. Connection
// loss and recovery are reported to Watch callbacks.
func NewNATS(cfg NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = NewLogger()
	}
	if cfg.URL == "" {
		cfg.URL = natsgo.DefaultURL
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	b := newBus(TransportNATS, logger)

	natsOpts := func(role string) []natsgo.Option {
		return []natsgo.Option{
			natsgo.Name("packline-" + role),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(cfg.MaxReconnects),
			natsgo.ReconnectWait(cfg.ReconnectWait),
			natsgo.ConnectHandler(func(nc *natsgo.Conn) {
				b.setConnected(true)
			}),
			natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
				if err != nil {
					logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
				}
				b.setConnected(false)
			}),
			natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
				logger.Info("NATS reconnected", watermill.LogFields{"role": role, "url": nc.ConnectedUrl()})
				b.setConnected(true)
			}),
			natsgo.ClosedHandler(func(nc *natsgo.Conn) {
				b.setConnected(false)
			}),
		}
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts("publisher"),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts("subscriber"),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	b.pub = pub
	b.sub = sub
	b.connected.Store(true)
	return b, nil
}

// Transport returns "memory" or "nats".
func (b *Bus) Transport() string { return b.transport }

// Connected reports the last known transport connection state.
func (b *Bus) Connected() bool { return b.connected.Load() }

// Publish sends messages to topic.
func (b *Bus) Publish(topic string, msgs ...*message.Message) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.pub.Publish(topic, msgs...)
}

// Subscribe returns the messages published on topic until ctx is done.
// Every message must be acked before the next one is delivered.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	return b.sub.Subscribe(ctx, topic)
}

// Watch registers fn for connection changes and returns a function that
// unregisters it.
func (b *Bus) Watch(fn func(connected bool)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextWatch
	b.nextWatch++
	b.watchers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, id)
	}
}

func (b *Bus) setConnected(v bool) {
	if b.connected.Swap(v) == v {
		return
	}
	b.mu.Lock()
	fns := make([]func(bool), 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close shuts the publisher and subscriber down. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.sub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}
	if !b.shared {
		if err := b.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
