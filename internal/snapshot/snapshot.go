// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package snapshot persists each tenant's last reconciled packing summaries
// in BadgerDB so a restarted display can show stale-but-present data before
// its first fetch completes.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/models"
)

const keyPrefix = "summaries:"

// Options configure the store.
type Options struct {
	Path string
	// InMemory keeps everything in RAM; Path is ignored.
	InMemory bool
	// TTL expires snapshots that have not been refreshed. Zero keeps them forever.
	TTL time.Duration
}

// Store is a BadgerDB-backed snapshot store.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

type record struct {
	SavedAt   time.Time                        `json:"saved_at"`
	Summaries []*models.CustomerPackingSummary `json:"summaries"`
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for snapshots: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL}, nil
}

// Save replaces the tenant's snapshot.
func (s *Store) Save(tenant models.TenantID, summaries []*models.CustomerPackingSummary) error {
	if tenant == "" {
		return errors.New("snapshot tenant cannot be empty")
	}
	if summaries == nil {
		summaries = []*models.CustomerPackingSummary{}
	}
	data, err := json.Marshal(record{SavedAt: time.Now().UTC(), Summaries: summaries})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+string(tenant)), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Load returns the tenant's snapshot. ok is false when none is stored.
func (s *Store) Load(tenant models.TenantID) (summaries []*models.CustomerPackingSummary, ok bool, err error) {
	var rec record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + string(tenant)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot for %s: %w", tenant, err)
	}
	return rec.Summaries, true, nil
}

// Delete removes the tenant's snapshot.
func (s *Store) Delete(tenant models.TenantID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + string(tenant)))
	})
}

// Tenants lists tenants with a stored snapshot.
func (s *Store) Tenants() ([]models.TenantID, error) {
	var out []models.TenantID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			out = append(out, models.TenantID(key[len(keyPrefix):]))
		}
		return nil
	})
	return out, err
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC rewrites value log files until badger reports nothing left to
// reclaim. In-memory stores have no value log and return nil.
func (s *Store) RunGC(discardRatio float64) error {
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("snapshot value log gc: %w", err)
		}
	}
}
