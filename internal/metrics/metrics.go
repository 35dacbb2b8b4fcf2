// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event application
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_events_applied_total",
			Help: "Events applied to a display cache",
		},
		[]string{"source", "kind"}, // source: broadcast, change
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_events_dropped_total",
			Help: "Events discarded before reaching the cache",
		},
		[]string{"source", "reason"}, // reason: stale, detached, decode, tenant
	)

	// Reconciliation
	Reconciles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_reconciles_total",
			Help: "Reconcile fetches by mode and result",
		},
		[]string{"mode", "result"}, // result: ok, error, discarded
	)

	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packline_reconcile_fetch_duration_seconds",
			Help:    "Time spent fetching canonical summaries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	ReconcileCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "packline_reconcile_triggers_coalesced_total",
			Help: "Soft reconcile triggers absorbed by a pending debounce window or in-flight fetch",
		},
	)

	// Connections
	ConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packline_connection_status",
			Help: "Aggregate subscription status per tenant (0=disconnected, 1=connecting, 2=connected)",
		},
		[]string{"tenant"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "packline_display_sessions",
			Help: "Display sessions currently attached",
		},
	)

	// Broadcast sends
	BroadcastSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_broadcast_sends_total",
			Help: "Broadcast messages handed to the channel",
		},
		[]string{"type", "result"}, // result: sent, error, throttled
	)

	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_change_events_published_total",
			Help: "Change events emitted by storage mutations",
		},
		[]string{"table", "result"},
	)

	// Storage
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packline_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_duckdb_query_errors_total",
			Help: "DuckDB query errors",
		},
		[]string{"operation"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "packline_websocket_connections",
			Help: "Kiosk websocket clients currently connected",
		},
	)

	WSFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "packline_websocket_frames_dropped_total",
			Help: "Frames dropped because a kiosk client was too slow",
		},
	)

	// Snapshots
	SnapshotGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_snapshot_gc_runs_total",
			Help: "Snapshot store value log GC runs by result",
		},
		[]string{"result"},
	)

	SnapshotGCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "packline_snapshot_gc_duration_seconds",
			Help:    "Snapshot store value log GC latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packline_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packline_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordEventApplied counts an event that reached the engine.
func RecordEventApplied(source, kind string) {
	EventsApplied.WithLabelValues(source, kind).Inc()
}

// RecordEventDropped counts an event discarded before the engine.
func RecordEventDropped(source, reason string) {
	EventsDropped.WithLabelValues(source, reason).Inc()
}

// RecordReconcile records one finished reconcile fetch.
func RecordReconcile(mode string, duration time.Duration, err error, discarded bool) {
	ReconcileDuration.WithLabelValues(mode).Observe(duration.Seconds())
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case discarded:
		result = "discarded"
	}
	Reconciles.WithLabelValues(mode, result).Inc()
}

// SetConnectionStatus publishes a tenant's aggregate status.
func SetConnectionStatus(tenant, state string) {
	v := 1.0
	switch state {
	case "connected":
		v = 2
	case "disconnected":
		v = 0
	}
	ConnectionStatus.WithLabelValues(tenant).Set(v)
}

// ClearConnectionStatus removes the gauge for a tenant with no sessions.
func ClearConnectionStatus(tenant string) {
	ConnectionStatus.DeleteLabelValues(tenant)
}

// RecordBroadcastSend counts a send attempt.
func RecordBroadcastSend(msgType, result string) {
	BroadcastSends.WithLabelValues(msgType, result).Inc()
}

// RecordChangePublished counts an emitted change event.
func RecordChangePublished(table string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ChangeEventsPublished.WithLabelValues(table, result).Inc()
}

// RecordDBQuery records a storage query.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordSnapshotGC records one snapshot GC run.
func RecordSnapshotGC(duration time.Duration, err error) {
	SnapshotGCDuration.Observe(duration.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	SnapshotGCRuns.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
