// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package validation

import (
	"strings"
	"testing"
)

func TestGetValidatorSingleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return one non-nil singleton instance")
	}
}

type windowQuery struct {
	Past   string `validate:"omitempty,window_preset"`
	Future string `validate:"omitempty,window_preset"`
}

func TestWindowPresetValidator(t *testing.T) {
	tests := []struct {
		name    string
		input   windowQuery
		wantErr bool
	}{
		{"both empty", windowQuery{}, false},
		{"valid tokens", windowQuery{Past: "7d", Future: "24h"}, false},
		{"zero window", windowQuery{Past: "0d", Future: "0d"}, false},
		{"thirty days", windowQuery{Past: "30d"}, false},
		{"unknown token", windowQuery{Past: "90d"}, true},
		{"raw duration", windowQuery{Future: "36h"}, true},
		{"garbage", windowQuery{Past: "soon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct(%+v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "must be one of") {
				t.Errorf("error message %q does not list the accepted tokens", err.Error())
			}
		})
	}
}

type mutationRequest struct {
	ProviderID      string `validate:"required,min=1,max=100"`
	ProviderEventID string `validate:"required,min=1,max=255"`
	CanonicalID     string `validate:"omitempty,max=255"`
}

func TestValidateStructMessages(t *testing.T) {
	err := ValidateStruct(&mutationRequest{})
	if err == nil {
		t.Fatal("ValidateStruct() accepted an empty mutation request")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("got %d field errors, want 2: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if len(apiErr.Details) != 2 {
		t.Errorf("details = %v, want one entry per failed field", apiErr.Details)
	}
}

func TestToAPIErrorSingleFailure(t *testing.T) {
	err := ValidateStruct(&mutationRequest{ProviderID: "apple"})
	if err == nil {
		t.Fatal("ValidateStruct() accepted a request missing the event id")
	}

	apiErr := err.ToAPIError()
	if !strings.Contains(apiErr.Message, "ProviderEventID is required") {
		t.Errorf("message = %q, want the single field failure inline", apiErr.Message)
	}
	if apiErr.Details != nil {
		t.Errorf("details = %v, want nil for a single failure", apiErr.Details)
	}
}
