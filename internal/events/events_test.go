// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package events

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/models"
)

func TestDecodeVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want MessageType
	}{
		{"packed", `{"type":"ITEM_PACKED","tenantId":"t1","customerId":"c1","productId":"p1","lineItemId":"li1","timestamp":5}`, TypeItemPacked},
		{"unpacked with quantity", `{"type":"ITEM_UNPACKED","tenantId":"t1","customerId":"c1","productId":"p1","lineItemId":"li1","quantity":2,"timestamp":5}`, TypeItemUnpacked},
		{"all packed", `{"type":"ALL_PACKED","tenantId":"t1","productId":"p1","lineItemIds":["a","b"],"timestamp":5}`, TypeAllPacked},
		{"all packed empty list", `{"type":"ALL_PACKED","tenantId":"t1","productId":"p1","lineItemIds":[],"timestamp":5}`, TypeAllPacked},
		{"selected", `{"type":"PRODUCTS_SELECTED","tenantId":"t1","productIds":["p1"],"sessionDate":"2026-10-19","timestamp":5}`, TypeProductsSelected},
		{"cleared", `{"type":"PRODUCTS_CLEARED","tenantId":"t1","sessionDate":"2026-10-19","timestamp":5}`, TypeProductsCleared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if msg.Type() != tt.want {
				t.Errorf("Type = %s, want %s", msg.Type(), tt.want)
			}
			if msg.Tenant() != "t1" || msg.Stamp() != 5 {
				t.Errorf("header = (%s, %d)", msg.Tenant(), msg.Stamp())
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"unknown type", `{"type":"NOPE","tenantId":"t1","timestamp":1}`, ErrUnknownMessageType},
		{"no tenant", `{"type":"ITEM_PACKED","customerId":"c","productId":"p","lineItemId":"l","timestamp":1}`, ErrMissingField},
		{"no timestamp", `{"type":"ITEM_PACKED","tenantId":"t1","customerId":"c","productId":"p","lineItemId":"l"}`, ErrMissingField},
		{"no line item", `{"type":"ITEM_PACKED","tenantId":"t1","customerId":"c","productId":"p","timestamp":1}`, ErrMissingField},
		{"no line item ids", `{"type":"ALL_PACKED","tenantId":"t1","productId":"p","timestamp":1}`, ErrMissingField},
		{"no session date", `{"type":"PRODUCTS_CLEARED","tenantId":"t1","timestamp":1}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode([]byte(tt.in)); !errors.Is(err, tt.want) {
				t.Errorf("Decode err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Decode([]byte("{not json")); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestEncodeKeepsOptionalQuantity(t *testing.T) {
	t.Parallel()

	qty := 4
	in := &ItemPacked{
		Header:   Header{TenantID: "t1", Timestamp: 42},
		ItemLine: ItemLine{CustomerID: "c1", ProductID: "p1", LineItemID: "li1", Quantity: &qty},
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(*ItemPacked)
	if !ok {
		t.Fatalf("decoded %T, want *ItemPacked", out)
	}
	if got.Quantity == nil || *got.Quantity != 4 || got.LineItemID != "li1" {
		t.Errorf("decoded %+v", got.ItemLine)
	}
}

type countingVisitor struct{ seen map[MessageType]int }

func (c *countingVisitor) VisitItemPacked(*ItemPacked)             { c.seen[TypeItemPacked]++ }
func (c *countingVisitor) VisitItemUnpacked(*ItemUnpacked)         { c.seen[TypeItemUnpacked]++ }
func (c *countingVisitor) VisitAllPacked(*AllPacked)               { c.seen[TypeAllPacked]++ }
func (c *countingVisitor) VisitProductsSelected(*ProductsSelected) { c.seen[TypeProductsSelected]++ }
func (c *countingVisitor) VisitProductsCleared(*ProductsCleared)   { c.seen[TypeProductsCleared]++ }

func TestAcceptDispatchesToMatchingMethod(t *testing.T) {
	t.Parallel()

	msgs := []BroadcastMessage{
		&ItemPacked{}, &ItemUnpacked{}, &AllPacked{}, &ProductsSelected{}, &ProductsCleared{},
	}
	v := &countingVisitor{seen: map[MessageType]int{}}
	for _, m := range msgs {
		m.Accept(v)
	}
	for _, m := range msgs {
		if v.seen[m.Type()] != 1 {
			t.Errorf("%s visited %d times", m.Type(), v.seen[m.Type()])
		}
	}
}

func TestTopics(t *testing.T) {
	t.Parallel()

	tenant := models.TenantID("bakery-7")
	if got := PackingTopic(tenant); got != "packing-updates-bakery-7" {
		t.Errorf("PackingTopic = %q", got)
	}
	if got := SelectionTopic(tenant); got != "active-products-bakery-7" {
		t.Errorf("SelectionTopic = %q", got)
	}
	if got := TopicFor(tenant, TypeProductsCleared); got != SelectionTopic(tenant) {
		t.Errorf("TopicFor(cleared) = %q", got)
	}
	if got := TopicFor(tenant, TypeAllPacked); got != PackingTopic(tenant) {
		t.Errorf("TopicFor(all packed) = %q", got)
	}
	if got := ChangeTopic(tenant, TableLineItems); got != "changes-bakery-7-line_items" {
		t.Errorf("ChangeTopic = %q", got)
	}
}

func TestChangeEventLineItems(t *testing.T) {
	t.Parallel()

	ev := ChangeEvent{
		EventType: ChangeUpdate,
		Table:     TableLineItems,
		TenantID:  "t1",
		Old:       []byte(`{"id":"li1","customer_id":"c1","product_id":"p1","ordered_quantity":3,"packed_quantity":0,"status":"pending"}`),
		New:       []byte(`{"id":"li1","customer_id":"c1","product_id":"p1","ordered_quantity":3,"packed_quantity":3,"status":"packed"}`),
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	prev, next, err := ev.LineItems()
	if err != nil {
		t.Fatalf("LineItems: %v", err)
	}
	if prev.IsPacked() || !next.IsPacked() || next.PackedQuantity != 3 {
		t.Errorf("prev=%+v next=%+v", prev, next)
	}
	if ev.Structural() {
		t.Error("line item changes are not structural")
	}

	bad := ChangeEvent{EventType: ChangeDelete, Table: TableLineItems, TenantID: "t1"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidChange) {
		t.Errorf("delete without old row: err = %v", err)
	}
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	ev := &ChangeEvent{
		EventType: ChangeUpdate,
		Table:     TableLineItems,
		Old:       []byte(`{"id":"li1","customer_id":"c1"}`),
		New:       []byte(`{"id":"li1","customer_id":"c2"}`),
	}
	tests := []struct {
		f    Filter
		want bool
	}{
		{Filter{}, true},
		{Filter{Column: "customer_id", Value: "c1"}, true},
		{Filter{Column: "customer_id", Value: "c2"}, true},
		{Filter{Column: "customer_id", Value: "c3"}, false},
		{Filter{Column: "order_id", Value: "o1"}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Matches(ev); got != tt.want {
			t.Errorf("%+v.Matches = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	m := clock.NewManual(time.UnixMilli(1000))
	c := NewClock(m)

	a, b := c.Next(), c.Next()
	if a != 1000 || b != 1001 {
		t.Errorf("same-millisecond stamps = %d, %d; want 1000, 1001", a, b)
	}
	m.Advance(10 * time.Millisecond)
	if got := c.Next(); got != 1010 {
		t.Errorf("after advance Next = %d, want 1010", got)
	}
}
