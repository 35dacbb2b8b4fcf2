// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package storage is the canonical store for orders, line items, packing
sessions and product selections, backed by DuckDB.

Every committed mutation is published as a ChangeEvent on the change feed
after the transaction commits. FetchSummaries is the reconciler's source of
truth: it derives customer packing summaries for the tenant's active session
and product selection.
*/
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/packline/internal/config"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveSession is returned by actions that need an active packing session.
	ErrNoActiveSession = errors.New("no active packing session")
)

// ChangeEmitter publishes committed row changes.
type ChangeEmitter interface {
	Emit(ctx context.Context, ev events.ChangeEvent) error
}

// DB wraps the DuckDB connection.
type DB struct {
	conn         *sql.DB
	cfg          *config.DatabaseConfig
	changes      ChangeEmitter
	queryTimeout time.Duration
}

// New opens the database at cfg.Path (":memory:" for tests) and creates the
// schema. changes may be nil, in which case nothing is published.
func New(cfg *config.DatabaseConfig, changes ChangeEmitter) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	// Extensions are not needed; keep DuckDB from reaching for the network.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, changes: changes, queryTimeout: cfg.QueryTimeout}
	if db.queryTimeout <= 0 {
		db.queryTimeout = 10 * time.Second
	}

	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	if err := db.createSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// ensureContext bounds ctx by the configured query timeout unless it
// already carries a deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// withTx runs fn in a transaction and publishes the collected change events
// once it commits.
func (db *DB) withTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx, out *[]events.ChangeEvent) error) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	begin := time.Now()
	err := func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", op, err)
		}
		var changes []events.ChangeEvent
		if err := fn(ctx, tx, &changes); err != nil {
			rollbackQuietly(tx)
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", op, err)
		}
		db.publish(ctx, changes)
		return nil
	}()
	metrics.RecordDBQuery(op, time.Since(begin), err)
	return err
}

// publish emits committed changes. The write already happened, so a failed
// emit is only logged; displays converge on their next reconcile.
func (db *DB) publish(ctx context.Context, changes []events.ChangeEvent) {
	if db.changes == nil {
		return
	}
	for _, ev := range changes {
		if err := db.changes.Emit(context.WithoutCancel(ctx), ev); err != nil {
			logging.Warn().Err(err).Str("tenant", string(ev.TenantID)).Str("table", ev.Table).Msg("Failed to publish change event")
		}
	}
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}
