// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package models

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// TenantID identifies an isolated bakery account. Every channel, cache entry
// and event is scoped by tenant.
type TenantID string

// String implements fmt.Stringer.
func (t TenantID) String() string {
	return string(t)
}

// ErrInvalidTenant is returned for tenant ids that cannot be used in topic names.
var ErrInvalidTenant = errors.New("invalid tenant id")

// Validate checks that the tenant id is non-empty and safe to embed in a
// NATS subject (no dots, wildcards or whitespace).
func (t TenantID) Validate() error {
	if t == "" {
		return ErrInvalidTenant
	}
	if strings.ContainsAny(string(t), ".*> \t\r\n") {
		return ErrInvalidTenant
	}
	return nil
}

// LineItemStatus is the packing state of one line item.
type LineItemStatus string

const (
	LineItemPending    LineItemStatus = "pending"
	LineItemInProgress LineItemStatus = "in_progress"
	LineItemPacked     LineItemStatus = "packed"
	LineItemCompleted  LineItemStatus = "completed"
)

// Valid reports whether s is one of the known line item statuses.
func (s LineItemStatus) Valid() bool {
	switch s {
	case LineItemPending, LineItemInProgress, LineItemPacked, LineItemCompleted:
		return true
	}
	return false
}

// SummaryStatus is the overall status of a customer packing summary.
type SummaryStatus string

const (
	SummaryOngoing   SummaryStatus = "ongoing"
	SummaryCompleted SummaryStatus = "completed"
)

// PackingLineItem is one ordered quantity of one product for one order.
type PackingLineItem struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id,omitempty"`
	ProductID       string         `json:"product_id"`
	CustomerID      string         `json:"customer_id"`
	OrderedQuantity int            `json:"ordered_quantity"`
	PackedQuantity  int            `json:"packed_quantity"`
	Status          LineItemStatus `json:"status"`
}

// IsPacked reports whether the item counts towards the packed total.
func (li *PackingLineItem) IsPacked() bool {
	return li.Status == LineItemPacked || li.Status == LineItemCompleted
}

// MarkPacked sets the item packed. A nil quantity packs the full ordered amount.
// The packed quantity is clamped to [0, OrderedQuantity].
func (li *PackingLineItem) MarkPacked(quantity *int) {
	qty := li.OrderedQuantity
	if quantity != nil {
		qty = *quantity
	}
	li.PackedQuantity = clamp(qty, 0, li.OrderedQuantity)
	li.Status = LineItemPacked
}

// MarkUnpacked resets the item to pending with nothing packed.
func (li *PackingLineItem) MarkUnpacked() {
	li.PackedQuantity = 0
	li.Status = LineItemPending
}

// ProductRollup groups one customer's line items for a single product.
type ProductRollup struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name,omitempty"`
	TotalLineItems  int               `json:"total_line_items"`
	PackedLineItems int               `json:"packed_line_items"`
	OrderedQuantity int               `json:"ordered_quantity"`
	PackedQuantity  int               `json:"packed_quantity"`
	LineItems       []PackingLineItem `json:"line_items"`
}

// Recount derives the rollup totals from its line items.
func (r *ProductRollup) Recount() {
	r.TotalLineItems = len(r.LineItems)
	r.PackedLineItems = 0
	r.OrderedQuantity = 0
	r.PackedQuantity = 0
	for i := range r.LineItems {
		li := &r.LineItems[i]
		if li.IsPacked() {
			r.PackedLineItems++
		}
		r.OrderedQuantity += li.OrderedQuantity
		r.PackedQuantity += li.PackedQuantity
	}
}

// FindLineItem returns the index of the line item with the given id, or -1.
func (r *ProductRollup) FindLineItem(id string) int {
	for i := range r.LineItems {
		if r.LineItems[i].ID == id {
			return i
		}
	}
	return -1
}

// CustomerPackingSummary is the derived per-customer aggregate shown on displays.
//
// PackedLineItems is the single customer-level packed counter; ProgressPercentage
// and Status are always derived from it by Recalculate and never set directly.
type CustomerPackingSummary struct {
	TenantID           TenantID        `json:"tenant_id"`
	CustomerID         string          `json:"customer_id"`
	CustomerName       string          `json:"customer_name,omitempty"`
	TotalLineItems     int             `json:"total_line_items"`
	PackedLineItems    int             `json:"packed_line_items"`
	ProgressPercentage int             `json:"progress_percentage"`
	Status             SummaryStatus   `json:"status"`
	Products           []ProductRollup `json:"products"`
}

// Recalculate clamps the packed counter into [0, TotalLineItems] and derives
// progress and status from it.
func (s *CustomerPackingSummary) Recalculate() {
	if s.TotalLineItems < 0 {
		s.TotalLineItems = 0
	}
	s.PackedLineItems = clamp(s.PackedLineItems, 0, s.TotalLineItems)
	s.ProgressPercentage = Progress(s.PackedLineItems, s.TotalLineItems)
	if s.ProgressPercentage >= 100 {
		s.Status = SummaryCompleted
	} else {
		s.Status = SummaryOngoing
	}
}

// Valid reports whether the summary satisfies the packing invariants.
func (s *CustomerPackingSummary) Valid() bool {
	if s.PackedLineItems < 0 || s.PackedLineItems > s.TotalLineItems {
		return false
	}
	if s.ProgressPercentage != Progress(s.PackedLineItems, s.TotalLineItems) {
		return false
	}
	completed := s.ProgressPercentage >= 100
	return completed == (s.Status == SummaryCompleted)
}

// Rollup returns the index of the rollup for productID, or -1.
func (s *CustomerPackingSummary) Rollup(productID string) int {
	for i := range s.Products {
		if s.Products[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// LocateLineItem finds a line item by id across all rollups.
func (s *CustomerPackingSummary) LocateLineItem(id string) (rollup, item int, ok bool) {
	for r := range s.Products {
		if i := s.Products[r].FindLineItem(id); i >= 0 {
			return r, i, true
		}
	}
	return -1, -1, false
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s *CustomerPackingSummary) Clone() *CustomerPackingSummary {
	if s == nil {
		return nil
	}
	out := *s
	out.Products = make([]ProductRollup, len(s.Products))
	for i := range s.Products {
		out.Products[i] = s.Products[i]
		out.Products[i].LineItems = append([]PackingLineItem(nil), s.Products[i].LineItems...)
	}
	return &out
}

// Progress returns round(packed/total × 100), or 0 when total is zero.
func Progress(packed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(packed) * 100 / float64(total)))
}

// Summarize builds a customer summary from canonical line items. Rollups are
// ordered by product id and line items by id so equal inputs give equal output.
func Summarize(tenant TenantID, customerID, customerName string, items []PackingLineItem, productNames map[string]string) *CustomerPackingSummary {
	byProduct := make(map[string][]PackingLineItem)
	for _, li := range items {
		byProduct[li.ProductID] = append(byProduct[li.ProductID], li)
	}

	productIDs := make([]string, 0, len(byProduct))
	for id := range byProduct {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	s := &CustomerPackingSummary{
		TenantID:     tenant,
		CustomerID:   customerID,
		CustomerName: customerName,
		Products:     make([]ProductRollup, 0, len(productIDs)),
	}
	for _, pid := range productIDs {
		lis := byProduct[pid]
		sort.Slice(lis, func(i, j int) bool { return lis[i].ID < lis[j].ID })
		r := ProductRollup{
			ProductID:   pid,
			ProductName: productNames[pid],
			LineItems:   lis,
		}
		r.Recount()
		s.TotalLineItems += r.TotalLineItems
		s.PackedLineItems += r.PackedLineItems
		s.Products = append(s.Products, r)
	}
	s.Recalculate()
	return s
}

// ActiveProductSelection is the set of products in play for a session date.
// A tenant without a selection has no packing summaries.
type ActiveProductSelection struct {
	TenantID    TenantID `json:"tenant_id"`
	SessionDate string   `json:"session_date"`
	ProductIDs  []string `json:"product_ids"`
}

// Contains reports whether productID is part of the selection.
func (a *ActiveProductSelection) Contains(productID string) bool {
	for _, id := range a.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
