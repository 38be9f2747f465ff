// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

// ProviderEventRecord is one event observation reported by a single
// provider for the active window.
//
// Identity key is (ProviderID, ProviderEventID). The pair is NOT unique
// within one fetched snapshot: overlapping windows or a re-queried upstream
// API can legitimately return the same observation twice. Duplicates are
// counted by the reconciliation pipeline, never silently dropped.
type ProviderEventRecord struct {
	ProviderID      string `json:"provider_id"`
	ProviderEventID string `json:"provider_event_id"`

	// CanonicalID is the sync engine's unifying identifier for "the same
	// appointment" across providers. Empty for unlinked observations.
	CanonicalID string `json:"canonical_id,omitempty"`

	Title string `json:"title"`

	// Timestamps are raw RFC3339 strings as received from the provider.
	StartAt            string `json:"start_at,omitempty"`
	EndAt              string `json:"end_at,omitempty"`
	LastUpdatedAt      string `json:"last_updated_at,omitempty"`
	ProviderLastSeenAt string `json:"provider_last_seen_at,omitempty"`

	Tombstoned bool `json:"tombstoned"`
}

// RecordKey is the identity key of a provider event record.
type RecordKey struct {
	ProviderID      string
	ProviderEventID string
}

// Key returns the record's identity key.
func (r ProviderEventRecord) Key() RecordKey {
	return RecordKey{ProviderID: r.ProviderID, ProviderEventID: r.ProviderEventID}
}

// Linked reports whether the record carries a canonical id.
func (r ProviderEventRecord) Linked() bool {
	return r.CanonicalID != ""
}

// FlowRecord is a canonical synchronization event recorded by the sync
// engine: "this run synchronized event CanonicalID from SourceProviderID
// to TargetProviderID".
type FlowRecord struct {
	CanonicalID      string `json:"canonical_id"`
	Title            string `json:"title,omitempty"`
	SourceProviderID string `json:"source_provider_id,omitempty"`
	TargetProviderID string `json:"target_provider_id,omitempty"`
	OccurredAt       string `json:"occurred_at,omitempty"`
}
