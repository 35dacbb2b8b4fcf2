// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package packing implements the staff-side actions that change packing state.
//
// Every action writes to canonical storage first; storage emits change events
// that eventually reach every display. On success the action also fires a
// broadcast so displays update optimistically without waiting for the change
// feed. A failed or throttled broadcast is logged and otherwise ignored.
package packing

import (
	"context"
	"fmt"

	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/models"
)

// Store is the subset of storage the service writes through. ActiveSession
// returns storage.ErrNoActiveSession when the tenant has no session.
type Store interface {
	SetPacked(ctx context.Context, tenant models.TenantID, id string, quantity *int) (models.PackingLineItem, bool, error)
	SetUnpacked(ctx context.Context, tenant models.TenantID, id string) (models.PackingLineItem, bool, error)
	PackAll(ctx context.Context, tenant models.TenantID, productID string) ([]models.PackingLineItem, error)
	StartSession(ctx context.Context, tenant models.TenantID, date string) error
	ActiveSession(ctx context.Context, tenant models.TenantID) (string, error)
	SelectProducts(ctx context.Context, tenant models.TenantID, date string, productIDs []string) error
	ClearProducts(ctx context.Context, tenant models.TenantID, date string) error
}

// Broadcaster fires a message without waiting for delivery.
type Broadcaster interface {
	Send(msg events.BroadcastMessage) bool
}

// Service runs staff actions.
type Service struct {
	store  Store
	sender Broadcaster
	clock  *events.Clock
}

// NewService wires a Service.
func NewService(store Store, sender Broadcaster, clock *events.Clock) *Service {
	return &Service{store: store, sender: sender, clock: clock}
}

func (s *Service) header(tenant models.TenantID) events.Header {
	return events.Header{TenantID: tenant, Timestamp: s.clock.Next()}
}

func (s *Service) send(msg events.BroadcastMessage) {
	if !s.sender.Send(msg) {
		logging.Debug().
			Str("tenant", string(msg.Tenant())).
			Str("type", string(msg.Type())).
			Msg("Broadcast not sent, displays will converge from the change feed")
	}
}

// Pack marks a line item packed. A nil quantity packs the ordered quantity.
// Packing an already-packed item with the same quantity is a no-op and sends
// nothing.
func (s *Service) Pack(ctx context.Context, tenant models.TenantID, lineItemID string, quantity *int) (models.PackingLineItem, error) {
	if err := tenant.Validate(); err != nil {
		return models.PackingLineItem{}, err
	}
	item, changed, err := s.store.SetPacked(ctx, tenant, lineItemID, quantity)
	if err != nil {
		return models.PackingLineItem{}, fmt.Errorf("pack %s: %w", lineItemID, err)
	}
	if changed {
		qty := item.PackedQuantity
		s.send(&events.ItemPacked{
			Header: s.header(tenant),
			ItemLine: events.ItemLine{
				CustomerID: item.CustomerID,
				ProductID:  item.ProductID,
				LineItemID: item.ID,
				Quantity:   &qty,
			},
		})
	}
	return item, nil
}

// Unpack returns a line item to pending.
func (s *Service) Unpack(ctx context.Context, tenant models.TenantID, lineItemID string) (models.PackingLineItem, error) {
	if err := tenant.Validate(); err != nil {
		return models.PackingLineItem{}, err
	}
	item, changed, err := s.store.SetUnpacked(ctx, tenant, lineItemID)
	if err != nil {
		return models.PackingLineItem{}, fmt.Errorf("unpack %s: %w", lineItemID, err)
	}
	if changed {
		s.send(&events.ItemUnpacked{
			Header: s.header(tenant),
			ItemLine: events.ItemLine{
				CustomerID: item.CustomerID,
				ProductID:  item.ProductID,
				LineItemID: item.ID,
			},
		})
	}
	return item, nil
}

// PackAll packs every outstanding line item of productID in the active
// session and returns the items it packed.
func (s *Service) PackAll(ctx context.Context, tenant models.TenantID, productID string) ([]models.PackingLineItem, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	packed, err := s.store.PackAll(ctx, tenant, productID)
	if err != nil {
		return nil, fmt.Errorf("pack all %s: %w", productID, err)
	}
	if len(packed) == 0 {
		return packed, nil
	}
	ids := make([]string, len(packed))
	for i := range packed {
		ids[i] = packed[i].ID
	}
	s.send(&events.AllPacked{Header: s.header(tenant), ProductID: productID, LineItemIDs: ids})
	return packed, nil
}

// StartSession makes date the active session. Displays pick it up from the
// change feed.
func (s *Service) StartSession(ctx context.Context, tenant models.TenantID, date string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	if err := s.store.StartSession(ctx, tenant, date); err != nil {
		return fmt.Errorf("start session %s: %w", date, err)
	}
	return nil
}

// sessionDate resolves an empty date to the active session.
func (s *Service) sessionDate(ctx context.Context, tenant models.TenantID, date string) (string, error) {
	if date != "" {
		return date, nil
	}
	active, err := s.store.ActiveSession(ctx, tenant)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	return active, nil
}

// SelectProducts sets the products in play. An empty date means the active session.
func (s *Service) SelectProducts(ctx context.Context, tenant models.TenantID, date string, productIDs []string) (string, error) {
	if err := tenant.Validate(); err != nil {
		return "", err
	}
	date, err := s.sessionDate(ctx, tenant, date)
	if err != nil {
		return "", err
	}
	if err := s.store.SelectProducts(ctx, tenant, date, productIDs); err != nil {
		return "", fmt.Errorf("select products: %w", err)
	}
	ids := append([]string(nil), productIDs...)
	s.send(&events.ProductsSelected{Header: s.header(tenant), ProductIDs: ids, SessionDate: date})
	return date, nil
}

// ClearProducts removes the product selection. An empty date means the active session.
func (s *Service) ClearProducts(ctx context.Context, tenant models.TenantID, date string) (string, error) {
	if err := tenant.Validate(); err != nil {
		return "", err
	}
	date, err := s.sessionDate(ctx, tenant, date)
	if err != nil {
		return "", err
	}
	if err := s.store.ClearProducts(ctx, tenant, date); err != nil {
		return "", fmt.Errorf("clear products: %w", err)
	}
	s.send(&events.ProductsCleared{Header: s.header(tenant), SessionDate: date})
	return date, nil
}
