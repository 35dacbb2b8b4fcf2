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

	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/models"
)

// UpsertCustomer creates or renames a customer.
func (db *DB) UpsertCustomer(ctx context.Context, tenant models.TenantID, id, name string) error {
	return db.withTx(ctx, "upsert_customer", func(ctx context.Context, tx *sql.Tx, _ *[]events.ChangeEvent) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (tenant_id, id, name) VALUES (?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET name = excluded.name`,
			string(tenant), id, name)
		return wrap("upsert customer", err)
	})
}

// UpsertProduct creates or renames a product.
func (db *DB) UpsertProduct(ctx context.Context, tenant models.TenantID, id, name string) error {
	return db.withTx(ctx, "upsert_product", func(ctx context.Context, tx *sql.Tx, _ *[]events.ChangeEvent) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (tenant_id, id, name) VALUES (?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET name = excluded.name`,
			string(tenant), id, name)
		return wrap("upsert product", err)
	})
}

// CreateOrder stores an order and its line items. Line items inherit the
// order's id and customer.
func (db *DB) CreateOrder(ctx context.Context, tenant models.TenantID, order Order, items []models.PackingLineItem) error {
	return db.withTx(ctx, "create_order", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (tenant_id, id, customer_id, session_date) VALUES (?, ?, ?, ?)`,
			string(tenant), order.ID, order.CustomerID, order.SessionDate); err != nil {
			return wrap("insert order", err)
		}
		ev, err := change(tenant, events.TableOrders, events.ChangeInsert, nil, &order)
		if err != nil {
			return err
		}
		*out = append(*out, ev)

		for i := range items {
			li := items[i]
			li.OrderID = order.ID
			li.CustomerID = order.CustomerID
			if !li.Status.Valid() {
				li.Status = models.LineItemPending
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO line_items (tenant_id, id, order_id, customer_id, product_id, ordered_quantity, packed_quantity, status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				string(tenant), li.ID, li.OrderID, li.CustomerID, li.ProductID,
				li.OrderedQuantity, li.PackedQuantity, string(li.Status)); err != nil {
				return wrap("insert line item", err)
			}
			ev, err := lineItemChange(tenant, events.ChangeInsert, nil, &li)
			if err != nil {
				return err
			}
			*out = append(*out, ev)
		}
		return nil
	})
}

// DeleteLineItem removes a line item.
func (db *DB) DeleteLineItem(ctx context.Context, tenant models.TenantID, id string) error {
	return db.withTx(ctx, "delete_line_item", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		prev, err := lineItem(ctx, tx, tenant, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE tenant_id = ? AND id = ?`, string(tenant), id); err != nil {
			return wrap("delete line item", err)
		}
		ev, err := lineItemChange(tenant, events.ChangeDelete, &prev, nil)
		if err != nil {
			return err
		}
		*out = append(*out, ev)
		return nil
	})
}

// GetLineItem returns one line item.
func (db *DB) GetLineItem(ctx context.Context, tenant models.TenantID, id string) (models.PackingLineItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return lineItem(ctx, db.conn, tenant, id)
}

func lineItem(ctx context.Context, q queryRower, tenant models.TenantID, id string) (models.PackingLineItem, error) {
	var li models.PackingLineItem
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, product_id, customer_id, ordered_quantity, packed_quantity, status
		FROM line_items WHERE tenant_id = ? AND id = ?`, string(tenant), id).
		Scan(&li.ID, &li.OrderID, &li.ProductID, &li.CustomerID, &li.OrderedQuantity, &li.PackedQuantity, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return li, fmt.Errorf("line item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return li, fmt.Errorf("load line item: %w", err)
	}
	li.Status = models.LineItemStatus(status)
	return li, nil
}

func updateLineItem(ctx context.Context, tx *sql.Tx, tenant models.TenantID, li *models.PackingLineItem) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE line_items SET packed_quantity = ?, status = ?
		WHERE tenant_id = ? AND id = ?`,
		li.PackedQuantity, string(li.Status), string(tenant), li.ID)
	return wrap("update line item", err)
}

// SetPacked marks a line item packed. A nil quantity packs the full ordered
// amount. It reports whether the row changed; packing an already packed
// item with the same quantity writes nothing.
func (db *DB) SetPacked(ctx context.Context, tenant models.TenantID, id string, quantity *int) (item models.PackingLineItem, changed bool, err error) {
	err = db.withTx(ctx, "set_packed", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		prev, err := lineItem(ctx, tx, tenant, id)
		if err != nil {
			return err
		}
		next := prev
		next.MarkPacked(quantity)
		item = next
		if next == prev {
			return nil
		}
		if err := updateLineItem(ctx, tx, tenant, &next); err != nil {
			return err
		}
		ev, err := lineItemChange(tenant, events.ChangeUpdate, &prev, &next)
		if err != nil {
			return err
		}
		*out = append(*out, ev)
		changed = true
		return nil
	})
	return item, changed, err
}

// SetUnpacked resets a line item to pending.
func (db *DB) SetUnpacked(ctx context.Context, tenant models.TenantID, id string) (item models.PackingLineItem, changed bool, err error) {
	err = db.withTx(ctx, "set_unpacked", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		prev, err := lineItem(ctx, tx, tenant, id)
		if err != nil {
			return err
		}
		next := prev
		next.MarkUnpacked()
		item = next
		if next == prev {
			return nil
		}
		if err := updateLineItem(ctx, tx, tenant, &next); err != nil {
			return err
		}
		ev, err := lineItemChange(tenant, events.ChangeUpdate, &prev, &next)
		if err != nil {
			return err
		}
		*out = append(*out, ev)
		changed = true
		return nil
	})
	return item, changed, err
}

// PackAll packs every unpacked line item of productID in the active
// session and returns the items it changed.
func (db *DB) PackAll(ctx context.Context, tenant models.TenantID, productID string) ([]models.PackingLineItem, error) {
	var packed []models.PackingLineItem
	err := db.withTx(ctx, "pack_all", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		date, err := activeSession(ctx, tx, tenant)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT li.id, li.order_id, li.product_id, li.customer_id, li.ordered_quantity, li.packed_quantity, li.status
			FROM line_items li
			JOIN orders o ON o.tenant_id = li.tenant_id AND o.id = li.order_id
			WHERE li.tenant_id = ? AND o.session_date = ? AND li.product_id = ?
			  AND li.status NOT IN ('packed', 'completed')
			ORDER BY li.id`, string(tenant), date, productID)
		if err != nil {
			return wrap("query unpacked items", err)
		}
		var pending []models.PackingLineItem
		for rows.Next() {
			var li models.PackingLineItem
			var status string
			if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.CustomerID, &li.OrderedQuantity, &li.PackedQuantity, &status); err != nil {
				closeQuietly(rows)
				return wrap("scan unpacked item", err)
			}
			li.Status = models.LineItemStatus(status)
			pending = append(pending, li)
		}
		closeQuietly(rows)
		if err := rows.Err(); err != nil {
			return wrap("iterate unpacked items", err)
		}

		for i := range pending {
			prev := pending[i]
			next := prev
			next.MarkPacked(nil)
			if err := updateLineItem(ctx, tx, tenant, &next); err != nil {
				return err
			}
			ev, err := lineItemChange(tenant, events.ChangeUpdate, &prev, &next)
			if err != nil {
				return err
			}
			*out = append(*out, ev)
			packed = append(packed, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packed, nil
}

// StartSession makes date the tenant's only active packing session.
func (db *DB) StartSession(ctx context.Context, tenant models.TenantID, date string) error {
	return db.withTx(ctx, "start_session", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT session_date, active FROM packing_sessions WHERE tenant_id = ?`, string(tenant))
		if err != nil {
			return wrap("query sessions", err)
		}
		var existing []sessionRow
		for rows.Next() {
			var r sessionRow
			if err := rows.Scan(&r.SessionDate, &r.Active); err != nil {
				closeQuietly(rows)
				return wrap("scan session", err)
			}
			existing = append(existing, r)
		}
		closeQuietly(rows)
		if err := rows.Err(); err != nil {
			return wrap("iterate sessions", err)
		}

		var current *sessionRow
		for i := range existing {
			r := existing[i]
			if r.SessionDate == date {
				current = &existing[i]
				continue
			}
			if !r.Active {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE packing_sessions SET active = false
				WHERE tenant_id = ? AND session_date = ?`, string(tenant), r.SessionDate); err != nil {
				return wrap("deactivate session", err)
			}
			ev, err := change(tenant, events.TablePackingSessions, events.ChangeUpdate, &r, &sessionRow{SessionDate: r.SessionDate})
			if err != nil {
				return err
			}
			*out = append(*out, ev)
		}

		next := sessionRow{SessionDate: date, Active: true}
		switch {
		case current == nil:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO packing_sessions (tenant_id, session_date, active) VALUES (?, ?, true)`,
				string(tenant), date); err != nil {
				return wrap("insert session", err)
			}
			ev, err := change(tenant, events.TablePackingSessions, events.ChangeInsert, nil, &next)
			if err != nil {
				return err
			}
			*out = append(*out, ev)
		case !current.Active:
			if _, err := tx.ExecContext(ctx, `
				UPDATE packing_sessions SET active = true, started_at = current_timestamp
				WHERE tenant_id = ? AND session_date = ?`, string(tenant), date); err != nil {
				return wrap("reactivate session", err)
			}
			ev, err := change(tenant, events.TablePackingSessions, events.ChangeUpdate, current, &next)
			if err != nil {
				return err
			}
			*out = append(*out, ev)
		}
		return nil
	})
}

// SelectProducts sets the products in play for date. Products not listed
// are deselected.
func (db *DB) SelectProducts(ctx context.Context, tenant models.TenantID, date string, productIDs []string) error {
	return db.withTx(ctx, "select_products", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		current, err := selectedProducts(ctx, tx, tenant, date)
		if err != nil {
			return err
		}
		want := make(map[string]struct{}, len(productIDs))
		for _, id := range productIDs {
			want[id] = struct{}{}
		}

		for _, id := range current {
			if _, keep := want[id]; keep {
				delete(want, id)
				continue
			}
			if err := deselect(ctx, tx, tenant, date, id, out); err != nil {
				return err
			}
		}
		for _, id := range productIDs {
			if _, add := want[id]; !add {
				continue
			}
			delete(want, id)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO product_selections (tenant_id, session_date, product_id) VALUES (?, ?, ?)`,
				string(tenant), date, id); err != nil {
				return wrap("insert selection", err)
			}
			ev, err := change(tenant, events.TableProductSelections, events.ChangeInsert, nil, &selectionRow{SessionDate: date, ProductID: id})
			if err != nil {
				return err
			}
			*out = append(*out, ev)
		}
		return nil
	})
}

// ClearProducts removes every product selection for date.
func (db *DB) ClearProducts(ctx context.Context, tenant models.TenantID, date string) error {
	return db.withTx(ctx, "clear_products", func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error {
		current, err := selectedProducts(ctx, tx, tenant, date)
		if err != nil {
			return err
		}
		for _, id := range current {
			if err := deselect(ctx, tx, tenant, date, id, out); err != nil {
				return err
			}
		}
		return nil
	})
}

func selectedProducts(ctx context.Context, tx *sql.Tx, tenant models.TenantID, date string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id FROM product_selections
		WHERE tenant_id = ? AND session_date = ? ORDER BY product_id`, string(tenant), date)
	if err != nil {
		return nil, wrap("query selection", err)
	}
	defer closeQuietly(rows)
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan selection", err)
		}
		ids = append(ids, id)
	}
	return ids, wrap("iterate selection", rows.Err())
}

func deselect(ctx context.Context, tx *sql.Tx, tenant models.TenantID, date, productID string, out *[]events.ChangeEvent) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM product_selections WHERE tenant_id = ? AND session_date = ? AND product_id = ?`,
		string(tenant), date, productID); err != nil {
		return wrap("delete selection", err)
	}
	ev, err := change(tenant, events.TableProductSelections, events.ChangeDelete, &selectionRow{SessionDate: date, ProductID: productID}, nil)
	if err != nil {
		return err
	}
	*out = append(*out, ev)
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
