// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package engine

import (
	"reflect"

	"github.com/tomtom215/packline/internal/cache"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/models"
)

// Revalidation tells the caller what kind of reconcile the event calls for.
type Revalidation int

const (
	// NoRevalidation means the local delta is sufficient.
	NoRevalidation Revalidation = iota
	// SoftRevalidation asks for a debounced background fetch.
	SoftRevalidation
	// ForcedRevalidation asks for an immediate fetch because no local delta
	// could be computed.
	ForcedRevalidation
)

func (r Revalidation) String() string {
	switch r {
	case SoftRevalidation:
		return "soft"
	case ForcedRevalidation:
		return "forced"
	default:
		return "none"
	}
}

// Outcome describes what applying one event did.
type Outcome struct {
	Changed    bool
	Revalidate Revalidation
	// Affected lists the customer ids whose summaries changed, in the order
	// they were first touched.
	Affected []string
}

// ApplyBroadcast applies a broadcast message to snap.
func ApplyBroadcast(snap *cache.Snapshot, msg events.BroadcastMessage) (*cache.Snapshot, Outcome) {
	if msg.Tenant() != snap.Tenant() {
		return snap, Outcome{}
	}
	a := &broadcastApplier{ws: newWorkset(snap)}
	msg.Accept(a)
	next, affected := a.ws.commit()
	return next, Outcome{Changed: next != snap, Revalidate: a.revalidate, Affected: affected}
}

// ApplyChange applies a storage change event to snap. Line item changes are
// folded into the owning customer's summary; every other table is
// structural and only requests a forced revalidation.
func ApplyChange(snap *cache.Snapshot, ev *events.ChangeEvent) (*cache.Snapshot, Outcome) {
	if ev.TenantID != snap.Tenant() {
		return snap, Outcome{}
	}
	if ev.Structural() {
		return snap, Outcome{Revalidate: ForcedRevalidation}
	}

	prev, cur, err := ev.LineItems()
	if err != nil {
		return snap, Outcome{Revalidate: SoftRevalidation}
	}
	if ev.EventType == events.ChangeInsert {
		prev = nil
	}
	if ev.EventType == events.ChangeDelete {
		cur = nil
	}

	ws := newWorkset(snap)
	id := ""
	if prev != nil {
		id = prev.ID
	} else if cur != nil {
		id = cur.ID
	}
	if cur == nil || !ws.replaceInPlace(cur) {
		ws.removeContribution(id, prev, cur)
		if cur != nil {
			ws.addContribution(cur)
		}
	}

	next, affected := ws.commit()
	return next, Outcome{Changed: next != snap, Revalidate: SoftRevalidation, Affected: affected}
}

type broadcastApplier struct {
	ws         *workset
	revalidate Revalidation
}

func (a *broadcastApplier) VisitItemPacked(m *events.ItemPacked) {
	a.revalidate = SoftRevalidation
	a.ws.setPacked(m.ItemLine, true)
}

func (a *broadcastApplier) VisitItemUnpacked(m *events.ItemUnpacked) {
	a.revalidate = SoftRevalidation
	a.ws.setPacked(m.ItemLine, false)
}

// VisitAllPacked walks every resident summary once and packs the listed
// items it holds. Each customer's counter rises by the number of its own
// items that were not already packed.
func (a *broadcastApplier) VisitAllPacked(m *events.AllPacked) {
	a.revalidate = SoftRevalidation
	wanted := make(map[string]struct{}, len(m.LineItemIDs))
	for _, id := range m.LineItemIDs {
		wanted[id] = struct{}{}
	}
	if len(wanted) == 0 {
		return
	}

	for _, customerID := range a.ws.base.Keys() {
		orig, _ := a.ws.base.Get(customerID)
		if !holdsAny(orig, wanted) {
			continue
		}
		s := a.ws.summary(customerID)
		newlyPacked := 0
		for r := range s.Products {
			items := s.Products[r].LineItems
			for i := range items {
				if _, ok := wanted[items[i].ID]; !ok {
					continue
				}
				if !items[i].IsPacked() {
					newlyPacked++
				}
				items[i].MarkPacked(nil)
			}
		}
		s.PackedLineItems += newlyPacked
	}
}

func (a *broadcastApplier) VisitProductsSelected(*events.ProductsSelected) {
	a.revalidate = ForcedRevalidation
}

func (a *broadcastApplier) VisitProductsCleared(*events.ProductsCleared) {
	a.revalidate = ForcedRevalidation
}

func holdsAny(s *models.CustomerPackingSummary, ids map[string]struct{}) bool {
	for r := range s.Products {
		for i := range s.Products[r].LineItems {
			if _, ok := ids[s.Products[r].LineItems[i].ID]; ok {
				return true
			}
		}
	}
	return false
}

// workset collects copy-on-write edits against a base snapshot.
type workset struct {
	base    *cache.Snapshot
	touched map[string]*models.CustomerPackingSummary
	order   []string
}

func newWorkset(base *cache.Snapshot) *workset {
	return &workset{base: base, touched: map[string]*models.CustomerPackingSummary{}}
}

// summary returns a private copy of the customer's summary, or nil if the
// customer is not resident.
func (w *workset) summary(customerID string) *models.CustomerPackingSummary {
	if s, ok := w.touched[customerID]; ok {
		return s
	}
	orig, ok := w.base.Get(customerID)
	if !ok {
		return nil
	}
	s := orig.Clone()
	w.touched[customerID] = s
	w.order = append(w.order, customerID)
	return s
}

// setPacked applies a single pack or unpack. A resident item already in the
// target state leaves the counter alone; an item the cache does not hold
// moves the counter by one and is corrected by the next reconcile.
func (w *workset) setPacked(line events.ItemLine, packed bool) {
	s := w.summary(line.CustomerID)
	if s == nil {
		return
	}
	delta := 0
	if r, i, ok := s.LocateLineItem(line.LineItemID); ok {
		li := &s.Products[r].LineItems[i]
		switch {
		case packed && !li.IsPacked():
			delta = 1
		case !packed && li.IsPacked():
			delta = -1
		}
		if packed {
			li.MarkPacked(line.Quantity)
		} else {
			li.MarkUnpacked()
		}
	} else if packed {
		delta = 1
	} else {
		delta = -1
	}
	s.PackedLineItems += delta
}

// replaceInPlace overwrites a resident row that stays with the same customer
// and product, keeping its position in the rollup.
func (w *workset) replaceInPlace(cur *models.PackingLineItem) bool {
	peeked := w.peek(cur.CustomerID)
	if peeked == nil {
		return false
	}
	r, _, ok := peeked.LocateLineItem(cur.ID)
	if !ok || peeked.Products[r].ProductID != cur.ProductID {
		return false
	}
	s := w.summary(cur.CustomerID)
	r, i, _ := s.LocateLineItem(cur.ID)
	li := &s.Products[r].LineItems[i]
	switch {
	case cur.IsPacked() && !li.IsPacked():
		s.PackedLineItems++
	case !cur.IsPacked() && li.IsPacked():
		s.PackedLineItems--
	}
	*li = *cur
	return true
}

// removeContribution takes the resident copy of line item id out of its
// customer's counts. Rows the cache does not hold are left to the next
// reconcile, which keeps duplicate deliveries harmless.
func (w *workset) removeContribution(id string, prev, cur *models.PackingLineItem) {
	for _, customerID := range candidateCustomers(prev, cur) {
		peeked := w.peek(customerID)
		if peeked == nil {
			continue
		}
		if _, _, resident := peeked.LocateLineItem(id); !resident {
			continue
		}
		s := w.summary(customerID)
		r, i, _ := s.LocateLineItem(id)
		if s.Products[r].LineItems[i].IsPacked() {
			s.PackedLineItems--
		}
		s.TotalLineItems--
		items := s.Products[r].LineItems
		s.Products[r].LineItems = append(items[:i:i], items[i+1:]...)
		return
	}
}

// addContribution inserts cur into its customer's rollup when the customer
// displays that product.
func (w *workset) addContribution(cur *models.PackingLineItem) {
	s := w.peek(cur.CustomerID)
	if s == nil || s.Rollup(cur.ProductID) < 0 {
		return
	}
	s = w.summary(cur.CustomerID)
	r := s.Rollup(cur.ProductID)
	s.Products[r].LineItems = append(s.Products[r].LineItems, *cur)
	s.TotalLineItems++
	if cur.IsPacked() {
		s.PackedLineItems++
	}
}

// peek returns the current view of a customer without cloning it.
func (w *workset) peek(customerID string) *models.CustomerPackingSummary {
	if s, ok := w.touched[customerID]; ok {
		return s
	}
	s, _ := w.base.Get(customerID)
	return s
}

func candidateCustomers(prev, cur *models.PackingLineItem) []string {
	var out []string
	if prev != nil {
		out = append(out, prev.CustomerID)
	}
	if cur != nil && (prev == nil || cur.CustomerID != prev.CustomerID) {
		out = append(out, cur.CustomerID)
	}
	return out
}

// commit recomputes every touched summary once and builds the next snapshot.
// Summaries that end up equal to their original are not replaced.
func (w *workset) commit() (*cache.Snapshot, []string) {
	updates := make(map[string]*models.CustomerPackingSummary, len(w.touched))
	var affected []string
	for _, customerID := range w.order {
		s := w.touched[customerID]
		for r := range s.Products {
			s.Products[r].Recount()
		}
		s.Recalculate()
		orig, _ := w.base.Get(customerID)
		if reflect.DeepEqual(orig, s) {
			continue
		}
		updates[customerID] = s
		affected = append(affected, customerID)
	}
	if len(updates) == 0 {
		return w.base, nil
	}
	return w.base.With(updates), affected
}
