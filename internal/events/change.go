// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package events

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/models"
)

// ChangeType is the kind of row mutation reported by storage.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Table names published on the change feed.
const (
	TableLineItems         = "line_items"
	TableOrders            = "orders"
	TablePackingSessions   = "packing_sessions"
	TableProductSelections = "product_selections"
)

// WatchedTables are the tables a display subscribes to.
var WatchedTables = []string{TableLineItems, TableOrders, TablePackingSessions, TableProductSelections}

// ErrInvalidChange is returned when a change event is malformed.
var ErrInvalidChange = errors.New("invalid change event")

// ChangeEvent is one row-level mutation. Delivery is ordered per (tenant, table)
// only.
type ChangeEvent struct {
	EventType ChangeType      `json:"eventType"`
	Table     string          `json:"table"`
	TenantID  models.TenantID `json:"tenantId"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	// CommitTimestamp is informational; ordering comes from delivery order.
	CommitTimestamp int64 `json:"commitTimestamp,omitempty"`
}

// Validate checks the fields every change event must carry.
func (e *ChangeEvent) Validate() error {
	switch e.EventType {
	case ChangeInsert:
		if len(e.New) == 0 {
			return fmt.Errorf("%w: insert without new row", ErrInvalidChange)
		}
	case ChangeUpdate:
		if len(e.New) == 0 {
			return fmt.Errorf("%w: update without new row", ErrInvalidChange)
		}
	case ChangeDelete:
		if len(e.Old) == 0 {
			return fmt.Errorf("%w: delete without old row", ErrInvalidChange)
		}
	default:
		return fmt.Errorf("%w: event type %q", ErrInvalidChange, e.EventType)
	}
	if e.Table == "" || e.TenantID == "" {
		return fmt.Errorf("%w: table and tenant are required", ErrInvalidChange)
	}
	return nil
}

// Structural reports whether the event changes which summaries exist.
func (e *ChangeEvent) Structural() bool {
	return e.Table != TableLineItems
}

// LineItemRow is the storage row shape of a line item.
type LineItemRow struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	ProductID       string `json:"product_id"`
	CustomerID      string `json:"customer_id"`
	OrderedQuantity int    `json:"ordered_quantity"`
	PackedQuantity  int    `json:"packed_quantity"`
	Status          string `json:"status"`
}

// Item converts the row into a model line item.
func (r *LineItemRow) Item() models.PackingLineItem {
	status := models.LineItemStatus(r.Status)
	if !status.Valid() {
		status = models.LineItemPending
	}
	return models.PackingLineItem{
		ID:              r.ID,
		OrderID:         r.OrderID,
		ProductID:       r.ProductID,
		CustomerID:      r.CustomerID,
		OrderedQuantity: r.OrderedQuantity,
		PackedQuantity:  r.PackedQuantity,
		Status:          status,
	}
}

// RowFromItem is the inverse of LineItemRow.Item.
func RowFromItem(li *models.PackingLineItem) LineItemRow {
	return LineItemRow{
		ID:              li.ID,
		OrderID:         li.OrderID,
		ProductID:       li.ProductID,
		CustomerID:      li.CustomerID,
		OrderedQuantity: li.OrderedQuantity,
		PackedQuantity:  li.PackedQuantity,
		Status:          string(li.Status),
	}
}

// LineItems decodes the old and new rows of a line item change. Either may be
// nil depending on the event type.
func (e *ChangeEvent) LineItems() (prev, next *models.PackingLineItem, err error) {
	if e.Table != TableLineItems {
		return nil, nil, fmt.Errorf("%w: table %q is not %s", ErrInvalidChange, e.Table, TableLineItems)
	}
	decode := func(raw json.RawMessage) (*models.PackingLineItem, error) {
		if len(raw) == 0 {
			return nil, nil
		}
		var row LineItemRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode line item row: %w", err)
		}
		if row.ID == "" {
			return nil, fmt.Errorf("%w: line item row without id", ErrInvalidChange)
		}
		item := row.Item()
		return &item, nil
	}
	if prev, err = decode(e.Old); err != nil {
		return nil, nil, err
	}
	if next, err = decode(e.New); err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// Filter narrows a change subscription to rows whose Column equals Value in
// either the old or the new image. The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e *ChangeEvent) bool {
	if f.Column == "" {
		return true
	}
	return rowHas(e.New, f.Column, f.Value) || rowHas(e.Old, f.Column, f.Value)
}

func rowHas(raw json.RawMessage, column, value string) bool {
	if len(raw) == 0 {
		return false
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return false
	}
	v, ok := row[column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == value
}
