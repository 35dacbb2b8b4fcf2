// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/models"
)

// Pack marks one line item packed.
func (h *Handler) Pack(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	var req packRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.LineItemID = chi.URLParam(r, "lineItem")
	if !validate(w, r, &req) {
		return
	}

	item, err := h.deps.Staff.Pack(r.Context(), tenant, req.LineItemID, req.Quantity)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Debug().Str("line_item_id", item.ID).Int("packed_quantity", item.PackedQuantity).Msg("Line item packed")
	respondData(w, r, http.StatusOK, item)
}

// Unpack returns one line item to pending.
func (h *Handler) Unpack(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	req := lineItemRequest{LineItemID: chi.URLParam(r, "lineItem")}
	if !validate(w, r, &req) {
		return
	}

	item, err := h.deps.Staff.Unpack(r.Context(), tenant, req.LineItemID)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, item)
}

// PackAll packs every outstanding line item of one product.
func (h *Handler) PackAll(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	req := packAllRequest{ProductID: chi.URLParam(r, "product")}
	if !validate(w, r, &req) {
		return
	}

	packed, err := h.deps.Staff.PackAll(r.Context(), tenant, req.ProductID)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	if packed == nil {
		packed = []models.PackingLineItem{}
	}
	respondData(w, r, http.StatusOK, map[string]any{"product_id": req.ProductID, "packed": packed})
}

// StartSession makes a date the active packing session.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if !decodeBody(w, r, &req) || !validate(w, r, &req) {
		return
	}

	if err := h.deps.Staff.StartSession(r.Context(), tenant, req.SessionDate); err != nil {
		respondActionError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"session_date": req.SessionDate})
}

// SelectProducts replaces the product selection.
func (h *Handler) SelectProducts(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	var req selectProductsRequest
	if !decodeBody(w, r, &req) || !validate(w, r, &req) {
		return
	}

	date, err := h.deps.Staff.SelectProducts(r.Context(), tenant, req.SessionDate, req.ProductIDs)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"session_date": date, "product_ids": req.ProductIDs})
}

// ClearProducts removes the product selection.
func (h *Handler) ClearProducts(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	req := clearProductsRequest{SessionDate: r.URL.Query().Get("session_date")}
	if !validate(w, r, &req) {
		return
	}

	date, err := h.deps.Staff.ClearProducts(r.Context(), tenant, req.SessionDate)
	if err != nil {
		respondActionError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"session_date": date})
}
