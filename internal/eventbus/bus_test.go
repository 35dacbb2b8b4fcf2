// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func exerciseBus(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Subscribe(ctx, "packing-updates-t1")
	if err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	other, err := b.Subscribe(ctx, "packing-updates-t1")
	if err != nil {
		t.Fatalf("Subscribe other: %v", err)
	}
	foreign, err := b.Subscribe(ctx, "packing-updates-t2")
	if err != nil {
		t.Fatalf("Subscribe foreign: %v", err)
	}

	// Give NATS subscriptions a moment to register with the server.
	time.Sleep(100 * time.Millisecond)

	// The memory transport blocks Publish until subscribers ack, so publish
	// from another goroutine.
	published := make(chan error, 1)
	go func() {
		for _, payload := range []string{"one", "two", "three"} {
			if err := b.Publish("packing-updates-t1", message.NewMessage(watermill.NewUUID(), []byte(payload))); err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	for _, want := range []string{"one", "two", "three"} {
		for _, ch := range []<-chan *message.Message{a, other} {
			if got := string(receive(t, ch).Payload); got != want {
				t.Fatalf("received %q, want %q", got, want)
			}
		}
	}

	if err := <-published; err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-foreign:
		t.Fatalf("tenant t2 received %q", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusFanOutInOrder(t *testing.T) {
	t.Parallel()

	b := NewMemory(watermill.NopLogger{})
	defer b.Close()

	if b.Transport() != TransportMemory || !b.Connected() {
		t.Fatalf("transport=%s connected=%v", b.Transport(), b.Connected())
	}
	exerciseBus(t, b)
}

func TestNATSBusFanOutInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	t.Parallel()

	srv, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	defer srv.Shutdown(context.Background())

	b, err := NewNATS(NATSConfig{URL: srv.ClientURL(), MaxReconnects: 1, ReconnectWait: 10 * time.Millisecond}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewNATS: %v", err)
	}
	defer b.Close()

	exerciseBus(t, b)
}

func TestClosedBus(t *testing.T) {
	t.Parallel()

	b := NewMemory(watermill.NopLogger{})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := b.Publish("x", message.NewMessage("1", nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish err = %v", err)
	}
	if _, err := b.Subscribe(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe err = %v", err)
	}
}

func TestWatchReceivesTransitions(t *testing.T) {
	t.Parallel()

	b := NewMemory(watermill.NopLogger{})
	defer b.Close()

	var seen []bool
	stop := b.Watch(func(c bool) { seen = append(seen, c) })
	b.setConnected(true) // unchanged, no callback
	b.setConnected(false)
	b.setConnected(true)
	stop()
	b.setConnected(false)

	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Errorf("transitions = %v, want [false true]", seen)
	}
}
