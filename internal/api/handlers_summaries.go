// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

// Summary sources.
const (
	SourceDisplay = "display"
	SourceStorage = "storage"
)

// SummariesResponse is the body of GET .../summaries.
type SummariesResponse struct {
	Tenant       models.TenantID                  `json:"tenant_id"`
	Source       string                           `json:"source"`
	Status       status.State                     `json:"status,omitempty"`
	Revalidating bool                             `json:"revalidating"`
	Summaries    []*models.CustomerPackingSummary `json:"summaries"`
}

// StatusResponse is the body of GET .../status.
type StatusResponse struct {
	Tenant        models.TenantID       `json:"tenant_id"`
	Attached      bool                  `json:"attached"`
	Status        status.State          `json:"status,omitempty"`
	Revalidating  bool                  `json:"revalidating"`
	Breaker       string                `json:"breaker,omitempty"`
	Subscriptions []status.Subscription `json:"subscriptions,omitempty"`
}

// Summaries returns the tenant's packing summaries, optionally for one customer.
func (h *Handler) Summaries(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	q := customerQuery{CustomerID: r.URL.Query().Get("customer")}
	if !validate(w, r, &q) {
		return
	}

	resp := SummariesResponse{Tenant: tenant}
	var all []*models.CustomerPackingSummary
	if sess, attached := h.deps.Sessions.Lookup(tenant); attached {
		resp.Source = SourceDisplay
		resp.Status = sess.Status()
		resp.Revalidating = sess.Revalidating()
		all = sess.Snapshot().Summaries()
	} else {
		var err error
		all, err = h.deps.Store.FetchSummaries(r.Context(), tenant)
		if err != nil {
			respondActionError(w, r, err)
			return
		}
		resp.Source = SourceStorage
	}

	resp.Summaries = filterCustomer(all, q.CustomerID)
	respondData(w, r, http.StatusOK, resp)
}

func filterCustomer(all []*models.CustomerPackingSummary, customerID string) []*models.CustomerPackingSummary {
	if customerID == "" {
		if all == nil {
			return []*models.CustomerPackingSummary{}
		}
		return all
	}
	out := []*models.CustomerPackingSummary{}
	for _, s := range all {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out
}

// Status reports the connection status of the tenant's display session.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	resp := StatusResponse{Tenant: tenant}
	if sess, attached := h.deps.Sessions.Lookup(tenant); attached {
		resp.Attached = true
		resp.Status = sess.Status()
		resp.Revalidating = sess.Revalidating()
		resp.Breaker = sess.BreakerState()
		resp.Subscriptions = sess.Subscriptions()
	}
	respondData(w, r, http.StatusOK, resp)
}

// Revalidate asks the tenant's display session to refetch.
func (h *Handler) Revalidate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	forced, _ := strconv.ParseBool(r.URL.Query().Get("forced"))
	sess, attached := h.deps.Sessions.Lookup(tenant)
	if !attached {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No display attached for tenant", nil)
		return
	}
	sess.Revalidate(forced)
	respondData(w, r, http.StatusAccepted, map[string]any{"tenant_id": tenant, "forced": forced})
}

// Selection returns the active product selection, or null when there is none.
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	sel, err := h.deps.Store.ActiveSelection(r.Context(), tenant)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"selection": sel})
}

// Sessions lists attached display sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	infos := h.deps.Sessions.Sessions()
	if infos == nil {
		infos = []display.SessionInfo{}
	}
	respondData(w, r, http.StatusOK, infos)
}
