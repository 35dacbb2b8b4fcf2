// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/packline/internal/eventbus"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

func packed(ts int64, item string) *events.ItemPacked {
	return &events.ItemPacked{
		Header:   events.Header{TenantID: "t1", Timestamp: ts},
		ItemLine: events.ItemLine{CustomerID: "c1", ProductID: "p1", LineItemID: item},
	}
}

func newChannel(t *testing.T) *Channel {
	t.Helper()
	bus := eventbus.NewMemory(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	return NewChannel(bus)
}

func receive(t *testing.T, ch <-chan events.BroadcastMessage) events.BroadcastMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func TestSenderDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	channel := newChannel(t)
	got := make(chan events.BroadcastMessage, 4)
	var states []status.State

	h := channel.Connect(context.Background(), events.PackingTopic("t1"))
	defer h.Disconnect()
	if err := h.Subscribe(func(m events.BroadcastMessage) { got <- m }, func(s status.State, _ error) {
		states = append(states, s)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if len(states) != 2 || states[0] != status.Connecting || states[1] != status.Connected {
		t.Errorf("states = %v, want [connecting connected]", states)
	}

	sender := NewSender(channel, SenderConfig{})
	for i, item := range []string{"li1", "li2"} {
		if !sender.Send(packed(int64(i+1), item)) {
			t.Fatalf("send %s was throttled", item)
		}
		sender.Wait()
	}

	for _, want := range []string{"li1", "li2"} {
		m, ok := receive(t, got).(*events.ItemPacked)
		if !ok || m.LineItemID != want {
			t.Fatalf("got %+v, want ITEM_PACKED %s", m, want)
		}
	}
}

func TestStructuralMessagesUseSelectionTopic(t *testing.T) {
	t.Parallel()

	channel := newChannel(t)
	items := make(chan events.BroadcastMessage, 2)
	selections := make(chan events.BroadcastMessage, 2)

	hi := channel.Connect(context.Background(), events.PackingTopic("t1"))
	defer hi.Disconnect()
	hs := channel.Connect(context.Background(), events.SelectionTopic("t1"))
	defer hs.Disconnect()
	if err := hi.Subscribe(func(m events.BroadcastMessage) { items <- m }, nil); err != nil {
		t.Fatal(err)
	}
	if err := hs.Subscribe(func(m events.BroadcastMessage) { selections <- m }, nil); err != nil {
		t.Fatal(err)
	}

	sender := NewSender(channel, SenderConfig{})
	sender.Send(&events.ProductsCleared{Header: events.Header{TenantID: "t1", Timestamp: 9}, SessionDate: "2026-10-19"})
	sender.Wait()

	if m := receive(t, selections); m.Type() != events.TypeProductsCleared {
		t.Errorf("selection topic got %s", m.Type())
	}
	select {
	case m := <-items:
		t.Errorf("packing topic got %s", m.Type())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectStopsDelivery(t *testing.T) {
	t.Parallel()

	channel := newChannel(t)
	got := make(chan events.BroadcastMessage, 1)
	h := channel.Connect(context.Background(), events.PackingTopic("t1"))
	if err := h.Subscribe(func(m events.BroadcastMessage) { got <- m }, nil); err != nil {
		t.Fatal(err)
	}
	h.Disconnect()
	h.Disconnect()

	if h.Lifecycle().Guard().Mounted() {
		t.Fatal("guard still mounted after Disconnect")
	}
	if err := h.Send(context.Background(), packed(1, "li1")); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Send after Disconnect = %v, want ErrDisconnected", err)
	}
	if err := h.Subscribe(func(events.BroadcastMessage) {}, nil); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Subscribe after Disconnect = %v, want ErrDisconnected", err)
	}

	sender := NewSender(channel, SenderConfig{})
	sender.Send(packed(2, "li2"))
	sender.Wait()
	select {
	case m := <-got:
		t.Errorf("received %s after Disconnect", m.Type())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeTwiceFails(t *testing.T) {
	t.Parallel()

	h := newChannel(t).Connect(context.Background(), events.PackingTopic("t1"))
	defer h.Disconnect()
	if err := h.Subscribe(func(events.BroadcastMessage) {}, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Subscribe(func(events.BroadcastMessage) {}, nil); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("second Subscribe = %v", err)
	}
}

func TestSenderThrottlesPerTenant(t *testing.T) {
	t.Parallel()

	sender := NewSender(newChannel(t), SenderConfig{RatePerSecond: 0.001, Burst: 2})
	defer sender.Wait()

	results := []bool{
		sender.Send(packed(1, "a")),
		sender.Send(packed(2, "b")),
		sender.Send(packed(3, "c")),
	}
	if !results[0] || !results[1] || results[2] {
		t.Errorf("results = %v, want [true true false]", results)
	}

	other := &events.ItemPacked{Header: events.Header{TenantID: "t2", Timestamp: 1}}
	if !sender.Send(other) {
		t.Error("another tenant should have its own budget")
	}
}

func TestSenderEvictsIdleLimiters(t *testing.T) {
	t.Parallel()

	// Burst 2 at 1/s refills in 2s.
	sender := NewSender(newChannel(t), SenderConfig{RatePerSecond: 1, Burst: 2})
	defer sender.Wait()
	now := time.Unix(1_700_000_000, 0)
	sender.now = func() time.Time { return now }

	tenantMsg := func(tenant string, ts int64) *events.ItemPacked {
		return &events.ItemPacked{Header: events.Header{TenantID: models.TenantID(tenant), Timestamp: ts}}
	}
	limiters := func() int {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.limiters)
	}

	sender.Send(tenantMsg("t1", 1))
	sender.Send(tenantMsg("t1", 2))
	if sender.Send(tenantMsg("t1", 3)) {
		t.Fatal("third send within the burst window should be throttled")
	}
	sender.Send(tenantMsg("t2", 1))
	if got := limiters(); got != 2 {
		t.Fatalf("limiters = %d, want 2", got)
	}

	now = now.Add(time.Second)
	sender.Send(tenantMsg("t2", 2))

	// t1 has been idle for the full refill time; t2 has not.
	now = now.Add(time.Second + time.Millisecond)
	sender.Send(tenantMsg("t3", 1))
	sender.mu.Lock()
	_, hasT1 := sender.limiters["t1"]
	_, hasT2 := sender.limiters["t2"]
	sender.mu.Unlock()
	if hasT1 || !hasT2 {
		t.Errorf("after sweep t1 kept=%v t2 kept=%v, want t1 evicted and t2 kept", hasT1, hasT2)
	}

	// A recreated limiter starts with a full burst, same as the evicted one had.
	if !sender.Send(tenantMsg("t1", 4)) || !sender.Send(tenantMsg("t1", 5)) {
		t.Error("idle tenant should get its whole burst back")
	}
}
