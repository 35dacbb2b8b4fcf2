// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package api

// Path parameters are copied into these structs before validation so errors
// name them the same way as body fields.

type packRequest struct {
	LineItemID string `json:"line_item_id" validate:"ident"`
	Quantity   *int   `json:"quantity" validate:"omitempty,gte=0"`
}

type lineItemRequest struct {
	LineItemID string `json:"line_item_id" validate:"ident"`
}

type packAllRequest struct {
	ProductID string `json:"product_id" validate:"ident"`
}

type startSessionRequest struct {
	SessionDate string `json:"session_date" validate:"required,session_date"`
}

type selectProductsRequest struct {
	SessionDate string   `json:"session_date" validate:"omitempty,session_date"`
	ProductIDs  []string `json:"product_ids" validate:"required,min=1,max=500,unique,dive,ident"`
}

type clearProductsRequest struct {
	SessionDate string `json:"session_date" validate:"omitempty,session_date"`
}

type customerQuery struct {
	CustomerID string `json:"customer" validate:"omitempty,ident"`
}
