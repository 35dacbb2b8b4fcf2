// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package events

import "github.com/tomtom215/packline/internal/models"

// Topic concerns. A topic name is "<concern>-<tenant>".
const (
	ConcernPackingUpdates = "packing-updates"
	ConcernActiveProducts = "active-products"
	ConcernChanges        = "changes"
)

// PackingTopic carries item-level broadcasts for a tenant.
func PackingTopic(tenant models.TenantID) string {
	return ConcernPackingUpdates + "-" + string(tenant)
}

// SelectionTopic carries product selection broadcasts for a tenant.
func SelectionTopic(tenant models.TenantID) string {
	return ConcernActiveProducts + "-" + string(tenant)
}

// TopicFor returns the topic a message of type t is sent on.
func TopicFor(tenant models.TenantID, t MessageType) string {
	if t.IsStructural() {
		return SelectionTopic(tenant)
	}
	return PackingTopic(tenant)
}

// ChangeTopic carries change events for one (tenant, table) pair.
func ChangeTopic(tenant models.TenantID, table string) string {
	return ConcernChanges + "-" + string(tenant) + "-" + table
}
