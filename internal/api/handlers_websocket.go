// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"errors"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/websocket"
)

func (h *Handler) upgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin rejects upgrades without an Origin header or from an
// origin outside the CORS allow list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.deps.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket attaches a kiosk to the tenant's display session.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	q := customerQuery{CustomerID: r.URL.Query().Get("customer")}
	if !validate(w, r, &q) {
		return
	}

	sess, release, err := h.deps.Sessions.Acquire(tenant)
	if err != nil {
		if errors.Is(err, display.ErrManagerClosed) {
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Shutting down", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Could not attach display", err)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.deps.Hub, conn, websocket.Binding{
		Tenant:     tenant,
		CustomerID: q.CustomerID,
		Feed:       sess,
		Release:    release,
	})
	if err := h.deps.Hub.Register(r.Context(), client); err != nil {
		logging.Debug().Err(err).Str("tenant", string(tenant)).Msg("Kiosk client not registered")
	}
}
