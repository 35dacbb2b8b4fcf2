// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/storage"
	"github.com/tomtom215/packline/internal/validation"
	"github.com/tomtom215/packline/internal/websocket"
)

const maxBodyBytes = 64 << 10

// Store is the canonical storage the API reads and probes.
type Store interface {
	FetchSummaries(ctx context.Context, tenant models.TenantID) ([]*models.CustomerPackingSummary, error)
	ActiveSelection(ctx context.Context, tenant models.TenantID) (*models.ActiveProductSelection, error)
	Ping(ctx context.Context) error
}

// Staff runs packing actions.
type Staff interface {
	Pack(ctx context.Context, tenant models.TenantID, lineItemID string, quantity *int) (models.PackingLineItem, error)
	Unpack(ctx context.Context, tenant models.TenantID, lineItemID string) (models.PackingLineItem, error)
	PackAll(ctx context.Context, tenant models.TenantID, productID string) ([]models.PackingLineItem, error)
	StartSession(ctx context.Context, tenant models.TenantID, date string) error
	SelectProducts(ctx context.Context, tenant models.TenantID, date string, productIDs []string) (string, error)
	ClearProducts(ctx context.Context, tenant models.TenantID, date string) (string, error)
}

// Sessions hands out display sessions.
type Sessions interface {
	Acquire(tenant models.TenantID) (*display.Session, func(), error)
	Lookup(tenant models.TenantID) (*display.Session, bool)
	Sessions() []display.SessionInfo
}

// Bus reports event bus connectivity.
type Bus interface {
	Transport() string
	Connected() bool
}

// Dependencies groups everything the handlers use.
type Dependencies struct {
	Store    Store
	Staff    Staff
	Sessions Sessions
	Bus      Bus
	Hub      *websocket.Hub
	// AllowedOrigins gates websocket upgrades; "*" allows any origin.
	AllowedOrigins []string
}

// Handler implements every route.
type Handler struct {
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// tenantParam reads and validates the {tenant} path segment.
func (h *Handler) tenantParam(w http.ResponseWriter, r *http.Request) (models.TenantID, bool) {
	tenant := models.TenantID(chi.URLParam(r, "tenant"))
	if err := tenant.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid tenant id", nil)
		return "", false
	}
	return tenant, true
}

// decodeBody decodes an optional JSON body into dst. An empty body leaves
// dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}

// validate writes a 400 and returns false when req fails validation.
func validate(w http.ResponseWriter, r *http.Request, req any) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		respondDetailedError(w, r, http.StatusBadRequest, &APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		})
		return false
	}
	return true
}

// respondActionError maps domain errors onto HTTP statuses.
func respondActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	case errors.Is(err, storage.ErrNoActiveSession):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "No active packing session", nil)
	case errors.Is(err, models.ErrInvalidTenant):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid tenant id", nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Storage timed out", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Action failed", err)
	}
}
