// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package services

import (
	"context"
	"time"

	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
)

// SnapshotCollector is satisfied by *snapshot.Store.
type SnapshotCollector interface {
	RunGC(discardRatio float64) error
}

// SnapshotGCService periodically reclaims BadgerDB value log space from
// overwritten display snapshots. Failures are logged and retried on the next
// tick; they never stop the service.
type SnapshotGCService struct {
	store    SnapshotCollector
	interval time.Duration
	ratio    float64
	name     string
}

// NewSnapshotGCService runs store.RunGC(ratio) every interval.
func NewSnapshotGCService(store SnapshotCollector, interval time.Duration, ratio float64) *SnapshotGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &SnapshotGCService{
		store:    store,
		interval: interval,
		ratio:    ratio,
		name:     "snapshot-gc",
	}
}

// Serve implements suture.Service.
func (s *SnapshotGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			err := s.store.RunGC(s.ratio)
			metrics.RecordSnapshotGC(time.Since(start), err)
			if err != nil {
				logging.Warn().Err(err).Msg("Snapshot garbage collection failed")
				continue
			}
			logging.Debug().Dur("took", time.Since(start)).Msg("Snapshot garbage collection finished")
		}
	}
}

// String names the service in supervisor logs.
func (s *SnapshotGCService) String() string {
	return s.name
}
