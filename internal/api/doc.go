// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package api serves the HTTP surface of Packline on a Chi router.

Routes (all JSON unless noted):

	GET    /api/v1/health                     storage, bus and session health
	GET    /api/v1/health/live                liveness probe
	GET    /api/v1/health/ready               readiness probe (503 when degraded)
	GET    /api/v1/sessions                   attached display sessions
	GET    /api/v1/tenants/{tenant}/summaries            ?customer= narrows to one customer
	GET    /api/v1/tenants/{tenant}/status
	POST   /api/v1/tenants/{tenant}/revalidate           ?forced=true
	GET    /api/v1/tenants/{tenant}/selection
	PUT    /api/v1/tenants/{tenant}/selection            {"session_date", "product_ids"}
	DELETE /api/v1/tenants/{tenant}/selection            ?session_date=
	POST   /api/v1/tenants/{tenant}/session              {"session_date"}
	POST   /api/v1/tenants/{tenant}/line-items/{id}/pack {"quantity"}
	POST   /api/v1/tenants/{tenant}/line-items/{id}/unpack
	POST   /api/v1/tenants/{tenant}/products/{id}/pack-all
	GET    /api/v1/tenants/{tenant}/ws                   kiosk websocket, ?customer=
	GET    /metrics                                      Prometheus text format

Summaries come from the tenant's display session when a kiosk has one
attached, so they include optimistic updates; otherwise they are read
straight from storage.

Every response uses the envelope {"status", "data", "metadata", "error"}.
*/
package api
