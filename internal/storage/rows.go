// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package storage

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/models"
)

// Order is an order header. Its line items are stored separately.
type Order struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	SessionDate string `json:"session_date"`
}

type sessionRow struct {
	SessionDate string `json:"session_date"`
	Active      bool   `json:"active"`
}

type selectionRow struct {
	SessionDate string `json:"session_date"`
	ProductID   string `json:"product_id"`
}

// change builds a ChangeEvent with JSON encoded rows. A nil row is omitted.
func change(tenant models.TenantID, table string, kind events.ChangeType, oldRow, newRow any) (events.ChangeEvent, error) {
	ev := events.ChangeEvent{EventType: kind, Table: table, TenantID: tenant}
	var err error
	if oldRow != nil {
		if ev.Old, err = json.Marshal(oldRow); err != nil {
			return ev, fmt.Errorf("encode old %s row: %w", table, err)
		}
	}
	if newRow != nil {
		if ev.New, err = json.Marshal(newRow); err != nil {
			return ev, fmt.Errorf("encode new %s row: %w", table, err)
		}
	}
	return ev, nil
}

func lineItemChange(tenant models.TenantID, kind events.ChangeType, prev, next *models.PackingLineItem) (events.ChangeEvent, error) {
	var oldRow, newRow any
	if prev != nil {
		r := events.RowFromItem(prev)
		oldRow = &r
	}
	if next != nil {
		r := events.RowFromItem(next)
		newRow = &r
	}
	return change(tenant, events.TableLineItems, kind, oldRow, newRow)
}
