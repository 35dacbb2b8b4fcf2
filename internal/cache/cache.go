// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package cache holds the local packing summary cache of a display process.
//
// The Store is the only way to read or change cached summaries. Components
// receive it explicitly; there is no package-level cache.
package cache

import (
	"sync"

	"github.com/tomtom215/packline/internal/models"
)

// Stats describes cache activity.
type Stats struct {
	Tenants  int
	Entries  int
	Deltas   int64
	Replaces int64
	NoOps    int64
}

// Store is a per-tenant map of customer id to packing summary.
//
// Each tenant's state is an immutable *Snapshot that is swapped atomically,
// so readers never observe a half-applied delta.
//
// Thread Safety:
//   - Safe for concurrent use. Writers are expected to be the single event
//     loop of a display session; the lock exists for HTTP and websocket readers.
type Store struct {
	mu       sync.RWMutex
	tenants  map[models.TenantID]*Snapshot
	versions map[models.TenantID]uint64
	stats    Stats
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tenants:  make(map[models.TenantID]*Snapshot),
		versions: make(map[models.TenantID]uint64),
	}
}

// Snapshot returns the current snapshot for tenant. It never returns nil.
func (s *Store) Snapshot(tenant models.TenantID) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(tenant)
}

func (s *Store) snapshotLocked(tenant models.TenantID) *Snapshot {
	if snap, ok := s.tenants[tenant]; ok {
		return snap
	}
	return EmptySnapshot(tenant)
}

// Get returns a private copy of one customer's summary.
func (s *Store) Get(tenant models.TenantID, customerID string) (*models.CustomerPackingSummary, bool) {
	sum, ok := s.Snapshot(tenant).Get(customerID)
	if !ok {
		return nil, false
	}
	return sum.Clone(), true
}

// ApplyDelta runs fn against the tenant's current snapshot and stores the
// result. fn returning its argument unchanged is a no-op.
//
// Parameters:
//   - tenant: the tenant whose snapshot is updated
//   - fn: pure function from the current snapshot to the next one
//
// Returns:
//   - true if the stored snapshot changed (pointer identity)
func (s *Store) ApplyDelta(tenant models.TenantID, fn func(*Snapshot) *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshotLocked(tenant)
	next := fn(cur)
	if next == nil || next == cur {
		s.stats.NoOps++
		return false
	}
	s.tenants[tenant] = next
	s.versions[tenant]++
	s.stats.Deltas++
	return true
}

// Replace overwrites cache entries with canonical summaries.
//
// A nil keys slice replaces the tenant's whole snapshot: customers missing
// from summaries disappear. Otherwise only the listed keys are touched; a
// listed key with no matching summary is removed. Entries are replaced
// wholesale, never merged field by field.
func (s *Store) Replace(tenant models.TenantID, summaries []*models.CustomerPackingSummary, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keys == nil {
		s.tenants[tenant] = NewSnapshot(tenant, summaries)
	} else {
		byID := make(map[string]*models.CustomerPackingSummary, len(summaries))
		for _, sum := range summaries {
			if sum != nil {
				byID[sum.CustomerID] = sum
			}
		}
		updates := make(map[string]*models.CustomerPackingSummary, len(keys))
		for _, k := range keys {
			updates[k] = byID[k]
		}
		s.tenants[tenant] = s.snapshotLocked(tenant).With(updates)
	}
	s.versions[tenant]++
	s.stats.Replaces++
}

// Drop forgets everything cached for tenant.
func (s *Store) Drop(tenant models.TenantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, tenant)
	delete(s.versions, tenant)
}

// Version increases every time the tenant's snapshot is swapped.
func (s *Store) Version(tenant models.TenantID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[tenant]
}

// Stats returns a copy of the activity counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.Tenants = len(s.tenants)
	for _, snap := range s.tenants {
		st.Entries += snap.Len()
	}
	return st
}
