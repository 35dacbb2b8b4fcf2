// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package validation

import (
	"strings"
	"testing"
)

type selectRequest struct {
	Tenant      string   `json:"tenant_id" validate:"tenant"`
	SessionDate string   `json:"session_date" validate:"omitempty,session_date"`
	ProductIDs  []string `json:"product_ids" validate:"required,min=1,max=3,unique,dive,ident"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	neg := -1
	tests := []struct {
		name  string
		req   selectRequest
		field string
		tag   string
	}{
		{"valid", selectRequest{Tenant: "bakery", SessionDate: "2026-10-19", ProductIDs: []string{"bread"}}, "", ""},
		{"empty date allowed", selectRequest{Tenant: "bakery", ProductIDs: []string{"bread"}}, "", ""},
		{"dotted tenant", selectRequest{Tenant: "a.b", ProductIDs: []string{"bread"}}, "tenant_id", "tenant"},
		{"bad date", selectRequest{Tenant: "bakery", SessionDate: "19/10/2026", ProductIDs: []string{"bread"}}, "session_date", "session_date"},
		{"no products", selectRequest{Tenant: "bakery"}, "product_ids", "required"},
		{"too many products", selectRequest{Tenant: "bakery", ProductIDs: []string{"a", "b", "c", "d"}}, "product_ids", "max"},
		{"duplicate products", selectRequest{Tenant: "bakery", ProductIDs: []string{"a", "a"}}, "product_ids", "unique"},
		{"blank product", selectRequest{Tenant: "bakery", ProductIDs: []string{"a b"}}, "product_ids[0]", "ident"},
		{"negative quantity", selectRequest{Tenant: "bakery", ProductIDs: []string{"a"}, Quantity: &neg}, "quantity", "gte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.req)
			if tt.field == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected a validation error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.field || errs[0].Tag() != tt.tag {
				t.Errorf("got %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.field, tt.tag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&selectRequest{Tenant: "", SessionDate: "nope", ProductIDs: []string{"x"}})
	if verr == nil {
		t.Fatal("expected errors")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "tenant_id") || !strings.Contains(apiErr.Message, "session_date") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("details = %v", apiErr.Details)
	}

	single := ValidateStruct(&selectRequest{Tenant: "bakery"}).ToAPIError()
	if single.Message != "product_ids is required" || single.Details["field"] != "product_ids" {
		t.Errorf("single = %+v", single)
	}
}
