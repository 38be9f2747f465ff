// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

import "time"

// DirectionLabel describes how a group member relates to the matched
// synchronization flow for its canonical id.
type DirectionLabel string

const (
	// DirectionOutbound means the member's provider was the flow's source.
	DirectionOutbound DirectionLabel = "outbound"

	// DirectionInbound means the member's provider was the flow's target.
	DirectionInbound DirectionLabel = "inbound"

	// DirectionUnmapped means no flow record matched, or a flow exists but
	// the member's provider is neither its source nor its target. The
	// latter case is surfaced as-is: it may be a third provider observing
	// a two-party sync, or a data inconsistency.
	DirectionUnmapped DirectionLabel = "unmapped"
)

// GroupMember is one provider observation inside a reconciliation group.
type GroupMember struct {
	ProviderID   string              `json:"provider_id"`
	ProviderName string              `json:"provider_name"`
	Record       ProviderEventRecord `json:"record"`

	DirectionLabel       DirectionLabel `json:"direction_label"`
	DirectionCounterpart string         `json:"direction_counterpart,omitempty"`

	// DuplicateCount is the number of fetched records sharing this
	// member's (provider_id, provider_event_id) pair across the whole
	// snapshot. A value above 1 marks the group as a suspect collision.
	DuplicateCount int `json:"duplicate_count"`

	// OrbitLinkCount is the number of distinct providers observed sharing
	// this member's canonical id. Zero for unlinked records.
	OrbitLinkCount int `json:"orbit_link_count"`
}

// ReconciliationGroup clusters the observations that represent the same
// logical appointment, keyed by canonical id (or a synthetic per-record
// key when unlinked).
//
// Title and ReferenceStart are seeded from the first record encountered
// for the key and never overwritten afterwards; a group keeps a stable
// reference identity once it exists.
type ReconciliationGroup struct {
	Key         string `json:"key"`
	CanonicalID string `json:"canonical_id,omitempty"`
	Title       string `json:"title"`

	// ReferenceStart is the raw start timestamp of the first-seen record.
	ReferenceStart string `json:"reference_start,omitempty"`

	// SuspectCollision is true iff the group has more than one member or
	// any member was observed more than once by its provider.
	SuspectCollision bool `json:"suspect_collision"`

	ProviderCount int `json:"provider_count"`

	// LatestActivityAt is the maximum over all members' last_updated_at
	// and start_at plus the matched flow's occurred_at. Unparseable
	// timestamps contribute the zero time.
	LatestActivityAt time.Time `json:"latest_activity_at"`

	Members []GroupMember `json:"members"`
}
