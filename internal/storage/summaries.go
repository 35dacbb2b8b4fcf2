// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
)

// ActiveSession returns the date of the tenant's active packing session.
func (db *DB) ActiveSession(ctx context.Context, tenant models.TenantID) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return activeSession(ctx, db.conn, tenant)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeSession(ctx context.Context, q queryRower, tenant models.TenantID) (string, error) {
	var date string
	err := q.QueryRowContext(ctx, `
		SELECT session_date FROM packing_sessions
		WHERE tenant_id = ? AND active
		ORDER BY started_at DESC, session_date DESC
		LIMIT 1`, string(tenant)).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoActiveSession
	}
	if err != nil {
		return "", fmt.Errorf("active session: %w", err)
	}
	return date, nil
}

// ActiveSelection returns the product selection of the active session, or
// nil when there is no active session or nothing is selected.
func (db *DB) ActiveSelection(ctx context.Context, tenant models.TenantID) (*models.ActiveProductSelection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	date, err := activeSession(ctx, db.conn, tenant)
	if errors.Is(err, ErrNoActiveSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id FROM product_selections
		WHERE tenant_id = ? AND session_date = ?
		ORDER BY product_id`, string(tenant), date)
	if err != nil {
		return nil, fmt.Errorf("query selection: %w", err)
	}
	defer closeQuietly(rows)

	sel := &models.ActiveProductSelection{TenantID: tenant, SessionDate: date}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		sel.ProductIDs = append(sel.ProductIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selection: %w", err)
	}
	if len(sel.ProductIDs) == 0 {
		return nil, nil
	}
	return sel, nil
}

// FetchSummaries derives every customer's packing summary for the tenant's
// active session, restricted to the selected products. Without an active
// session or selection the result is empty.
func (db *DB) FetchSummaries(ctx context.Context, tenant models.TenantID) (summaries []*models.CustomerPackingSummary, err error) {
	begin := time.Now()
	defer func() { metrics.RecordDBQuery("fetch_summaries", time.Since(begin), err) }()

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	date, err := activeSession(ctx, db.conn, tenant)
	if errors.Is(err, ErrNoActiveSession) {
		return []*models.CustomerPackingSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT li.id, li.order_id, li.product_id, li.customer_id,
		       li.ordered_quantity, li.packed_quantity, li.status,
		       COALESCE(c.name, ''), COALESCE(p.name, '')
		FROM line_items li
		JOIN orders o
		  ON o.tenant_id = li.tenant_id AND o.id = li.order_id
		JOIN product_selections ps
		  ON ps.tenant_id = li.tenant_id AND ps.session_date = o.session_date AND ps.product_id = li.product_id
		LEFT JOIN customers c
		  ON c.tenant_id = li.tenant_id AND c.id = li.customer_id
		LEFT JOIN products p
		  ON p.tenant_id = li.tenant_id AND p.id = li.product_id
		WHERE li.tenant_id = ? AND o.session_date = ?
		ORDER BY li.customer_id, li.product_id, li.id`, string(tenant), date)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer closeQuietly(rows)

	var (
		order        []string
		items        = map[string][]models.PackingLineItem{}
		names        = map[string]string{}
		productNames = map[string]string{}
	)
	for rows.Next() {
		var (
			li           models.PackingLineItem
			status       string
			customerName string
			productName  string
		)
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.CustomerID,
			&li.OrderedQuantity, &li.PackedQuantity, &status, &customerName, &productName); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		li.Status = models.LineItemStatus(status)
		if !li.Status.Valid() {
			li.Status = models.LineItemPending
		}
		if _, seen := items[li.CustomerID]; !seen {
			order = append(order, li.CustomerID)
		}
		items[li.CustomerID] = append(items[li.CustomerID], li)
		names[li.CustomerID] = customerName
		productNames[li.ProductID] = productName
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	summaries = make([]*models.CustomerPackingSummary, 0, len(order))
	for _, customerID := range order {
		summaries = append(summaries, models.Summarize(tenant, customerID, names[customerID], items[customerID], productNames))
	}
	return summaries, nil
}
