// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/packline/internal/logging"
)

func TestTenantLoggingTagsContext(t *testing.T) {
	t.Parallel()

	var gotTenant, gotCorrelation string
	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Route("/tenants/{tenant}", func(r chi.Router) {
		r.Use(TenantLogging)
		r.Get("/summaries", func(w http.ResponseWriter, r *http.Request) {
			gotTenant = logging.TenantFromContext(r.Context())
			gotCorrelation = logging.CorrelationIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})
	r.Get("/other", func(w http.ResponseWriter, r *http.Request) {
		gotTenant = logging.TenantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/bakery-7/summaries", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotTenant != "bakery-7" {
		t.Errorf("tenant = %q, want bakery-7", gotTenant)
	}
	if gotCorrelation != "req-42" {
		t.Errorf("correlation id = %q, want req-42", gotCorrelation)
	}

	gotTenant = "unset"
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/other", nil))
	if gotTenant != "" {
		t.Errorf("route without {tenant} got tenant %q", gotTenant)
	}
}
