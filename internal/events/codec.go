// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package events

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/models"
)

var (
	// ErrUnknownMessageType is returned for an envelope whose type is not a known variant.
	ErrUnknownMessageType = errors.New("unknown broadcast message type")

	// ErrMissingField is returned when a required envelope field is absent.
	ErrMissingField = errors.New("missing required field")
)

// envelope is the JSON shape of every broadcast message.
type envelope struct {
	Type        MessageType     `json:"type"`
	TenantID    models.TenantID `json:"tenantId"`
	Timestamp   int64           `json:"timestamp"`
	CustomerID  string          `json:"customerId,omitempty"`
	ProductID   string          `json:"productId,omitempty"`
	LineItemID  string          `json:"lineItemId,omitempty"`
	Quantity    *int            `json:"quantity,omitempty"`
	LineItemIDs []string        `json:"lineItemIds,omitempty"`
	ProductIDs  []string        `json:"productIds,omitempty"`
	SessionDate string          `json:"sessionDate,omitempty"`
}

// Encode serializes m into its JSON envelope.
func Encode(m BroadcastMessage) ([]byte, error) {
	env := envelope{Type: m.Type(), TenantID: m.Tenant(), Timestamp: m.Stamp()}
	m.Accept(envelopeFiller{&env})
	return json.Marshal(env)
}

type envelopeFiller struct{ env *envelope }

func (f envelopeFiller) item(l ItemLine) {
	f.env.CustomerID = l.CustomerID
	f.env.ProductID = l.ProductID
	f.env.LineItemID = l.LineItemID
	f.env.Quantity = l.Quantity
}

func (f envelopeFiller) VisitItemPacked(m *ItemPacked)     { f.item(m.ItemLine) }
func (f envelopeFiller) VisitItemUnpacked(m *ItemUnpacked) { f.item(m.ItemLine) }
func (f envelopeFiller) VisitAllPacked(m *AllPacked) {
	f.env.ProductID = m.ProductID
	f.env.LineItemIDs = m.LineItemIDs
}
func (f envelopeFiller) VisitProductsSelected(m *ProductsSelected) {
	f.env.ProductIDs = m.ProductIDs
	f.env.SessionDate = m.SessionDate
}
func (f envelopeFiller) VisitProductsCleared(m *ProductsCleared) {
	f.env.SessionDate = m.SessionDate
}

// Decode parses a JSON envelope and checks the required fields of its variant.
func Decode(data []byte) (BroadcastMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode broadcast envelope: %w", err)
	}
	if env.TenantID == "" {
		return nil, fmt.Errorf("%w: tenantId", ErrMissingField)
	}
	if env.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	h := Header{TenantID: env.TenantID, Timestamp: env.Timestamp}

	switch env.Type {
	case TypeItemPacked, TypeItemUnpacked:
		switch {
		case env.CustomerID == "":
			return nil, fmt.Errorf("%w: customerId", ErrMissingField)
		case env.ProductID == "":
			return nil, fmt.Errorf("%w: productId", ErrMissingField)
		case env.LineItemID == "":
			return nil, fmt.Errorf("%w: lineItemId", ErrMissingField)
		}
		line := ItemLine{
			CustomerID: env.CustomerID,
			ProductID:  env.ProductID,
			LineItemID: env.LineItemID,
			Quantity:   env.Quantity,
		}
		if env.Type == TypeItemPacked {
			return &ItemPacked{Header: h, ItemLine: line}, nil
		}
		return &ItemUnpacked{Header: h, ItemLine: line}, nil

	case TypeAllPacked:
		if env.ProductID == "" {
			return nil, fmt.Errorf("%w: productId", ErrMissingField)
		}
		if env.LineItemIDs == nil {
			return nil, fmt.Errorf("%w: lineItemIds", ErrMissingField)
		}
		return &AllPacked{Header: h, ProductID: env.ProductID, LineItemIDs: env.LineItemIDs}, nil

	case TypeProductsSelected:
		if env.ProductIDs == nil {
			return nil, fmt.Errorf("%w: productIds", ErrMissingField)
		}
		if env.SessionDate == "" {
			return nil, fmt.Errorf("%w: sessionDate", ErrMissingField)
		}
		return &ProductsSelected{Header: h, ProductIDs: env.ProductIDs, SessionDate: env.SessionDate}, nil

	case TypeProductsCleared:
		if env.SessionDate == "" {
			return nil, fmt.Errorf("%w: sessionDate", ErrMissingField)
		}
		return &ProductsCleared{Header: h, SessionDate: env.SessionDate}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}
