// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"testing"

	"github.com/andygivens/orbit/internal/models"
)

func TestMatchDirection(t *testing.T) {
	flows := map[string]models.FlowRecord{
		"orbit-1": {
			CanonicalID:      "orbit-1",
			SourceProviderID: "apple",
			TargetProviderID: "skylight",
		},
	}
	names := map[string]string{
		"apple":    "Apple iCloud",
		"skylight": "Skylight Frame",
	}

	tests := []struct {
		name            string
		canonicalID     string
		providerID      string
		wantLabel       models.DirectionLabel
		wantCounterpart string
	}{
		{
			name:            "provider is flow source resolves outbound",
			canonicalID:     "orbit-1",
			providerID:      "apple",
			wantLabel:       models.DirectionOutbound,
			wantCounterpart: "Skylight Frame",
		},
		{
			name:            "provider is flow target resolves inbound",
			canonicalID:     "orbit-1",
			providerID:      "skylight",
			wantLabel:       models.DirectionInbound,
			wantCounterpart: "Apple iCloud",
		},
		{
			name:        "no flow record for canonical id resolves unmapped",
			canonicalID: "orbit-unknown",
			providerID:  "apple",
			wantLabel:   models.DirectionUnmapped,
		},
		{
			name:        "flow exists but provider matches neither side resolves unmapped",
			canonicalID: "orbit-1",
			providerID:  "google",
			wantLabel:   models.DirectionUnmapped,
		},
		{
			name:       "unlinked record resolves unmapped",
			providerID: "apple",
			wantLabel:  models.DirectionUnmapped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchDirection(tt.canonicalID, tt.providerID, flows, names)
			if got.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", got.Label, tt.wantLabel)
			}
			if got.Counterpart != tt.wantCounterpart {
				t.Errorf("counterpart = %q, want %q", got.Counterpart, tt.wantCounterpart)
			}
		})
	}
}

func TestMatchDirectionCounterpartFallsBackToRawID(t *testing.T) {
	flows := map[string]models.FlowRecord{
		"orbit-1": {
			CanonicalID:      "orbit-1",
			SourceProviderID: "apple",
			TargetProviderID: "unregistered-provider",
		},
	}

	got := MatchDirection("orbit-1", "apple", flows, map[string]string{"apple": "Apple"})
	if got.Counterpart != "unregistered-provider" {
		t.Errorf("counterpart = %q, want raw id fallback", got.Counterpart)
	}
}

func TestBuildFlowIndex(t *testing.T) {
	flows := []models.FlowRecord{
		{CanonicalID: "orbit-1", SourceProviderID: "apple", OccurredAt: "2026-08-01T10:00:00Z"},
		{CanonicalID: "orbit-1", SourceProviderID: "skylight", OccurredAt: "2026-08-02T10:00:00Z"},
		{CanonicalID: "orbit-2", SourceProviderID: "apple", OccurredAt: "not-a-timestamp"},
		// No canonical id: skipped entirely.
		{Title: "orphan flow"},
	}

	index := BuildFlowIndex(flows)

	if len(index) != 2 {
		t.Fatalf("index size = %d, want 2", len(index))
	}
	if got := index["orbit-1"].SourceProviderID; got != "skylight" {
		t.Errorf("most recent flow wins: source = %q, want %q", got, "skylight")
	}
	if _, ok := index["orbit-2"]; !ok {
		t.Error("flow with unparseable occurred_at must still be indexed")
	}
}

func TestBuildFlowIndexFirstSeenWinsOnEqualTimestamps(t *testing.T) {
	flows := []models.FlowRecord{
		{CanonicalID: "orbit-1", SourceProviderID: "first", OccurredAt: "2026-08-01T10:00:00Z"},
		{CanonicalID: "orbit-1", SourceProviderID: "second", OccurredAt: "2026-08-01T10:00:00Z"},
	}

	index := BuildFlowIndex(flows)
	if got := index["orbit-1"].SourceProviderID; got != "first" {
		t.Errorf("source = %q, want first-seen record on tie", got)
	}
}
