// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status           string  `json:"status"`
	StorageConnected bool    `json:"storage_connected"`
	BusTransport     string  `json:"bus_transport"`
	BusConnected     bool    `json:"bus_connected"`
	Sessions         int     `json:"sessions"`
	KioskClients     int     `json:"kiosk_clients"`
	Uptime           float64 `json:"uptime_seconds"`
}

func (h *Handler) health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	hs := HealthStatus{
		StorageConnected: h.deps.Store != nil && h.deps.Store.Ping(ctx) == nil,
		Uptime:           time.Since(h.startTime).Seconds(),
	}
	if h.deps.Bus != nil {
		hs.BusTransport = h.deps.Bus.Transport()
		hs.BusConnected = h.deps.Bus.Connected()
	}
	if h.deps.Sessions != nil {
		hs.Sessions = len(h.deps.Sessions.Sessions())
	}
	if h.deps.Hub != nil {
		hs.KioskClients = h.deps.Hub.GetClientCount()
	}

	hs.Status = "healthy"
	if !hs.StorageConnected || !hs.BusConnected {
		hs.Status = "degraded"
	}
	return hs
}

// Health reports storage, bus and session health. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.health(r.Context()))
}

// HealthLive answers 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]any{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 503 until storage and the bus are both reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	hs := h.health(r.Context())
	if hs.Status != "healthy" {
		respondJSON(w, http.StatusServiceUnavailable, &APIResponse{
			Status:   "error",
			Data:     hs,
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error:    &APIError{Code: ErrCodeServiceUnavailable, Message: "Service not ready"},
		})
		return
	}
	respondData(w, r, http.StatusOK, hs)
}
