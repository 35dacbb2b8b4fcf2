// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into a Chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The websocket route stays outside the metrics wrapper; a hijacked
		// connection has no meaningful status or latency.
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket), TenantLogging).
			Get("/tenants/{tenant}/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(PrometheusMetrics)
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/sessions", h.Sessions)
			r.Route("/tenants/{tenant}", func(r chi.Router) {
				r.Use(TenantLogging)

				r.Get("/summaries", h.Summaries)
				r.Get("/status", h.Status)
				r.Post("/revalidate", h.Revalidate)

				r.Get("/selection", h.Selection)
				r.Put("/selection", h.SelectProducts)
				r.Delete("/selection", h.ClearProducts)
				r.Post("/session", h.StartSession)

				r.Post("/line-items/{lineItem}/pack", h.Pack)
				r.Post("/line-items/{lineItem}/unpack", h.Unpack)
				r.Post("/products/{product}/pack-all", h.PackAll)
			})
		})
	})

	return r
}
