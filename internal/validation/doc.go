// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

// Package validation validates API request structs with go-playground/validator.
//
// Field names in errors are the JSON names, so a failure reads the way the
// client spelled the request:
//
//	type packRequest struct {
//	    LineItemID string `json:"line_item_id" validate:"ident"`
//	    Quantity   *int   `json:"quantity" validate:"omitempty,gte=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
package validation
