// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package cache

import (
	"reflect"
	"sort"

	"github.com/tomtom215/packline/internal/models"
)

// Snapshot is an immutable view of one tenant's packing summaries keyed by
// customer id. Summaries reachable from a Snapshot must never be mutated;
// With produces a new Snapshot instead.
type Snapshot struct {
	tenant  models.TenantID
	entries map[string]*models.CustomerPackingSummary
}

// EmptySnapshot returns a snapshot with no summaries.
func EmptySnapshot(tenant models.TenantID) *Snapshot {
	return &Snapshot{tenant: tenant, entries: map[string]*models.CustomerPackingSummary{}}
}

// NewSnapshot builds a snapshot from summaries, keyed by CustomerID.
func NewSnapshot(tenant models.TenantID, summaries []*models.CustomerPackingSummary) *Snapshot {
	s := &Snapshot{tenant: tenant, entries: make(map[string]*models.CustomerPackingSummary, len(summaries))}
	for _, sum := range summaries {
		if sum != nil {
			s.entries[sum.CustomerID] = sum
		}
	}
	return s
}

// Tenant returns the tenant the snapshot belongs to.
func (s *Snapshot) Tenant() models.TenantID { return s.tenant }

// Len returns the number of resident summaries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Get returns the resident summary for customerID. The result is shared and
// read-only.
func (s *Snapshot) Get(customerID string) (*models.CustomerPackingSummary, bool) {
	sum, ok := s.entries[customerID]
	return sum, ok
}

// Keys returns the resident customer ids in ascending order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summaries returns the resident summaries ordered by customer id.
func (s *Snapshot) Summaries() []*models.CustomerPackingSummary {
	keys := s.Keys()
	out := make([]*models.CustomerPackingSummary, len(keys))
	for i, k := range keys {
		out[i] = s.entries[k]
	}
	return out
}

// With returns a copy of s with the given entries replaced. A nil summary
// removes the key. Entries not named in updates are shared with s.
func (s *Snapshot) With(updates map[string]*models.CustomerPackingSummary) *Snapshot {
	if len(updates) == 0 {
		return s
	}
	next := &Snapshot{tenant: s.tenant, entries: make(map[string]*models.CustomerPackingSummary, len(s.entries)+len(updates))}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	for k, v := range updates {
		if v == nil {
			delete(next.entries, k)
			continue
		}
		next.entries[k] = v
	}
	return next
}

// Equal reports whether both snapshots hold deeply equal summaries.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || s.tenant != other.tenant || len(s.entries) != len(other.entries) {
		return false
	}
	for k, v := range s.entries {
		o, ok := other.entries[k]
		if !ok || !reflect.DeepEqual(v, o) {
			return false
		}
	}
	return true
}
