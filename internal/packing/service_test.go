// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package packing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	items    map[string]models.PackingLineItem
	session  string
	selected map[string][]string
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items: map[string]models.PackingLineItem{
			"li1": {ID: "li1", CustomerID: "c1", ProductID: "bread", OrderedQuantity: 4, Status: models.LineItemPending},
			"li2": {ID: "li2", CustomerID: "c2", ProductID: "bread", OrderedQuantity: 2, Status: models.LineItemPending},
			"li3": {ID: "li3", CustomerID: "c2", ProductID: "rolls", OrderedQuantity: 6, Status: models.LineItemPending},
		},
		selected: map[string][]string{},
	}
}

func (f *fakeStore) SetPacked(_ context.Context, _ models.TenantID, id string, qty *int) (models.PackingLineItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.PackingLineItem{}, false, f.err
	}
	li, ok := f.items[id]
	if !ok {
		return li, false, storage.ErrNotFound
	}
	prev := li
	li.MarkPacked(qty)
	f.items[id] = li
	return li, prev != li, nil
}

func (f *fakeStore) SetUnpacked(_ context.Context, _ models.TenantID, id string) (models.PackingLineItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	li, ok := f.items[id]
	if !ok {
		return li, false, storage.ErrNotFound
	}
	prev := li
	li.MarkUnpacked()
	f.items[id] = li
	return li, prev != li, nil
}

func (f *fakeStore) PackAll(_ context.Context, _ models.TenantID, productID string) ([]models.PackingLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PackingLineItem
	for _, id := range []string{"li1", "li2", "li3"} {
		li := f.items[id]
		if li.ProductID != productID || li.IsPacked() {
			continue
		}
		li.MarkPacked(nil)
		f.items[id] = li
		out = append(out, li)
	}
	return out, nil
}

func (f *fakeStore) StartSession(_ context.Context, _ models.TenantID, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = date
	return nil
}

func (f *fakeStore) ActiveSession(_ context.Context, _ models.TenantID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == "" {
		return "", storage.ErrNoActiveSession
	}
	return f.session, nil
}

func (f *fakeStore) SelectProducts(_ context.Context, _ models.TenantID, date string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected[date] = ids
	return nil
}

func (f *fakeStore) ClearProducts(_ context.Context, _ models.TenantID, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.selected, date)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []events.BroadcastMessage
	deny bool
}

func (f *fakeSender) Send(msg events.BroadcastMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

func newTestService() (*Service, *fakeStore, *fakeSender) {
	store := newFakeStore()
	sender := &fakeSender{}
	clk := events.NewClock(clock.NewManual(time.UnixMilli(1_000)))
	return NewService(store, sender, clk), store, sender
}

func TestPackSendsItemPacked(t *testing.T) {
	t.Parallel()

	svc, _, sender := newTestService()
	two := 2
	item, err := svc.Pack(context.Background(), "bakery", "li1", &two)
	if err != nil {
		t.Fatal(err)
	}
	if item.PackedQuantity != 2 || item.Status != models.LineItemPacked {
		t.Errorf("item = %+v", item)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg, ok := sender.sent[0].(*events.ItemPacked)
	if !ok {
		t.Fatalf("sent %T", sender.sent[0])
	}
	if msg.CustomerID != "c1" || msg.ProductID != "bread" || msg.LineItemID != "li1" {
		t.Errorf("message = %+v", msg.ItemLine)
	}
	if msg.Quantity == nil || *msg.Quantity != 2 {
		t.Errorf("quantity = %v", msg.Quantity)
	}
	if msg.Tenant() != "bakery" {
		t.Errorf("tenant = %q", msg.Tenant())
	}
}

func TestNoOpPackSendsNothing(t *testing.T) {
	t.Parallel()

	svc, _, sender := newTestService()
	ctx := context.Background()
	if _, err := svc.Pack(ctx, "bakery", "li1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Pack(ctx, "bakery", "li1", nil); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(sender.sent))
	}
}

func TestUnpackAndTimestampsIncrease(t *testing.T) {
	t.Parallel()

	svc, _, sender := newTestService()
	ctx := context.Background()
	if _, err := svc.Pack(ctx, "bakery", "li1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Unpack(ctx, "bakery", "li1"); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if _, ok := sender.sent[1].(*events.ItemUnpacked); !ok {
		t.Errorf("second message is %T", sender.sent[1])
	}
	if sender.sent[1].Stamp() <= sender.sent[0].Stamp() {
		t.Errorf("timestamps %d then %d", sender.sent[0].Stamp(), sender.sent[1].Stamp())
	}
}

func TestPackAllListsPackedItems(t *testing.T) {
	t.Parallel()

	svc, _, sender := newTestService()
	ctx := context.Background()
	if _, err := svc.Pack(ctx, "bakery", "li2", nil); err != nil {
		t.Fatal(err)
	}
	packed, err := svc.PackAll(ctx, "bakery", "bread")
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) != 1 || packed[0].ID != "li1" {
		t.Fatalf("packed = %+v", packed)
	}
	msg, ok := sender.sent[len(sender.sent)-1].(*events.AllPacked)
	if !ok {
		t.Fatalf("last message is %T", sender.sent[len(sender.sent)-1])
	}
	if msg.ProductID != "bread" || len(msg.LineItemIDs) != 1 || msg.LineItemIDs[0] != "li1" {
		t.Errorf("message = %+v", msg)
	}

	before := len(sender.sent)
	if _, err := svc.PackAll(ctx, "bakery", "bread"); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != before {
		t.Error("PackAll with nothing to pack should not broadcast")
	}
}

func TestSelectionUsesActiveSession(t *testing.T) {
	t.Parallel()

	svc, store, sender := newTestService()
	ctx := context.Background()

	if _, err := svc.SelectProducts(ctx, "bakery", "", []string{"bread"}); !errors.Is(err, storage.ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("failed selection should not broadcast")
	}

	if err := svc.StartSession(ctx, "bakery", "2026-10-19"); err != nil {
		t.Fatal(err)
	}
	date, err := svc.SelectProducts(ctx, "bakery", "", []string{"bread", "rolls"})
	if err != nil {
		t.Fatal(err)
	}
	if date != "2026-10-19" || len(store.selected[date]) != 2 {
		t.Errorf("date = %q selected = %v", date, store.selected)
	}
	sel, ok := sender.sent[0].(*events.ProductsSelected)
	if !ok || sel.SessionDate != "2026-10-19" || len(sel.ProductIDs) != 2 {
		t.Errorf("message = %#v", sender.sent[0])
	}

	if _, err := svc.ClearProducts(ctx, "bakery", "2026-10-19"); err != nil {
		t.Fatal(err)
	}
	if _, ok := sender.sent[1].(*events.ProductsCleared); !ok {
		t.Errorf("message = %T", sender.sent[1])
	}
	if _, ok := store.selected["2026-10-19"]; ok {
		t.Error("selection not cleared")
	}
}

func TestErrorsAndThrottling(t *testing.T) {
	t.Parallel()

	svc, store, sender := newTestService()
	ctx := context.Background()

	if _, err := svc.Pack(ctx, "a.b", "li1", nil); !errors.Is(err, models.ErrInvalidTenant) {
		t.Errorf("bad tenant err = %v", err)
	}
	if _, err := svc.Pack(ctx, "bakery", "missing", nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing item err = %v", err)
	}

	// A throttled broadcast does not fail the action.
	sender.deny = true
	item, err := svc.Pack(ctx, "bakery", "li3", nil)
	if err != nil || !item.IsPacked() {
		t.Errorf("Pack = %+v, %v", item, err)
	}

	store.err = errors.New("disk full")
	if _, err := svc.Pack(ctx, "bakery", "li1", nil); err == nil {
		t.Error("store failure should surface")
	}
}
