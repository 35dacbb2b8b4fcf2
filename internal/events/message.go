// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package events defines the two event families that feed a display: broadcast
// messages sent by staff actions and row-level change events emitted by storage.
//
// BroadcastMessage is a closed set of variants. Consumers dispatch with a
// Visitor, so adding a variant breaks every consumer until it is handled.
package events

import "github.com/tomtom215/packline/internal/models"

// MessageType is the wire discriminant of a broadcast message.
type MessageType string

const (
	TypeItemPacked       MessageType = "ITEM_PACKED"
	TypeItemUnpacked     MessageType = "ITEM_UNPACKED"
	TypeAllPacked        MessageType = "ALL_PACKED"
	TypeProductsSelected MessageType = "PRODUCTS_SELECTED"
	TypeProductsCleared  MessageType = "PRODUCTS_CLEARED"
)

// BroadcastMessage is implemented only by the types in this package.
type BroadcastMessage interface {
	Type() MessageType
	Tenant() models.TenantID
	// Stamp is the sender's monotonic timestamp in unix milliseconds.
	Stamp() int64
	Accept(v Visitor)

	sealed()
}

// Visitor handles every broadcast variant.
type Visitor interface {
	VisitItemPacked(m *ItemPacked)
	VisitItemUnpacked(m *ItemUnpacked)
	VisitAllPacked(m *AllPacked)
	VisitProductsSelected(m *ProductsSelected)
	VisitProductsCleared(m *ProductsCleared)
}

// Header carries the fields shared by every variant.
type Header struct {
	TenantID  models.TenantID
	Timestamp int64
}

func (h Header) Tenant() models.TenantID { return h.TenantID }
func (h Header) Stamp() int64            { return h.Timestamp }
func (Header) sealed()                   {}

// ItemLine identifies the line item touched by a pack or unpack.
type ItemLine struct {
	CustomerID string
	ProductID  string
	LineItemID string
	// Quantity is the packed quantity; nil means the full ordered quantity.
	Quantity *int
}

// ItemPacked reports one line item marked packed.
type ItemPacked struct {
	Header
	ItemLine
}

func (*ItemPacked) Type() MessageType    { return TypeItemPacked }
func (m *ItemPacked) Accept(v Visitor) { v.VisitItemPacked(m) }

// ItemUnpacked reports one line item returned to pending.
type ItemUnpacked struct {
	Header
	ItemLine
}

func (*ItemUnpacked) Type() MessageType    { return TypeItemUnpacked }
func (m *ItemUnpacked) Accept(v Visitor) { v.VisitItemUnpacked(m) }

// AllPacked marks every listed line item of one product packed, possibly
// across several customers.
type AllPacked struct {
	Header
	ProductID   string
	LineItemIDs []string
}

func (*AllPacked) Type() MessageType    { return TypeAllPacked }
func (m *AllPacked) Accept(v Visitor) { v.VisitAllPacked(m) }

// ProductsSelected replaces the active product selection for a session date.
type ProductsSelected struct {
	Header
	ProductIDs  []string
	SessionDate string
}

func (*ProductsSelected) Type() MessageType    { return TypeProductsSelected }
func (m *ProductsSelected) Accept(v Visitor) { v.VisitProductsSelected(m) }

// ProductsCleared removes the active product selection for a session date.
type ProductsCleared struct {
	Header
	SessionDate string
}

func (*ProductsCleared) Type() MessageType    { return TypeProductsCleared }
func (m *ProductsCleared) Accept(v Visitor) { v.VisitProductsCleared(m) }

// IsStructural reports whether t changes which summaries exist rather than
// their counts.
func (t MessageType) IsStructural() bool {
	return t == TypeProductsSelected || t == TypeProductsCleared
}
