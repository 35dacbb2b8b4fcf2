// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package storage

import (
	"context"
	"fmt"
	"time"
)

// Session dates are stored as YYYY-MM-DD strings.
var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		tenant_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		name VARCHAR NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		tenant_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		name VARCHAR NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		tenant_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		customer_id VARCHAR NOT NULL,
		session_date VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		tenant_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		order_id VARCHAR NOT NULL,
		customer_id VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		ordered_quantity INTEGER NOT NULL,
		packed_quantity INTEGER NOT NULL DEFAULT 0,
		status VARCHAR NOT NULL DEFAULT 'pending',
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS packing_sessions (
		tenant_id VARCHAR NOT NULL,
		session_date VARCHAR NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		started_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (tenant_id, session_date)
	)`,
	`CREATE TABLE IF NOT EXISTS product_selections (
		tenant_id VARCHAR NOT NULL,
		session_date VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		PRIMARY KEY (tenant_id, session_date, product_id)
	)`,
}

func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for _, q := range schemaQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}
