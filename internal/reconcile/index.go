// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"github.com/andygivens/orbit/internal/models"
)

// Index holds the lookup structures computed once over the full snapshot
// of fetched provider event records.
type Index struct {
	// duplicateCounts counts fetched records per (provider_id,
	// provider_event_id) pair. Values above 1 mean the provider reported
	// the same observation more than once within the window.
	duplicateCounts map[models.RecordKey]int

	// canonicalMembership maps a canonical id to the set of distinct
	// provider ids observed holding it.
	canonicalMembership map[string]map[string]struct{}
}

// BuildIndex computes duplicate counts and canonical membership in a
// single O(n) pass. Pure function of the input snapshot; no I/O.
func BuildIndex(records []models.ProviderEventRecord) Index {
	idx := Index{
		duplicateCounts:     make(map[models.RecordKey]int, len(records)),
		canonicalMembership: make(map[string]map[string]struct{}),
	}

	for _, rec := range records {
		idx.duplicateCounts[rec.Key()]++

		if rec.CanonicalID == "" {
			continue
		}
		providers, ok := idx.canonicalMembership[rec.CanonicalID]
		if !ok {
			providers = make(map[string]struct{}, 2)
			idx.canonicalMembership[rec.CanonicalID] = providers
		}
		providers[rec.ProviderID] = struct{}{}
	}

	return idx
}

// DuplicateCount returns the number of fetched records sharing the key.
func (idx Index) DuplicateCount(key models.RecordKey) int {
	return idx.duplicateCounts[key]
}

// OrbitLinkCount returns the number of distinct providers observed
// sharing the canonical id. Zero for the empty id.
func (idx Index) OrbitLinkCount(canonicalID string) int {
	if canonicalID == "" {
		return 0
	}
	return len(idx.canonicalMembership[canonicalID])
}
