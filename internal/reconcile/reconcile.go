// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"time"

	"github.com/andygivens/orbit/internal/models"
)

// Snapshot is one immutable, fully-settled fetch across all configured
// providers plus the flow history for the active scope. Failed providers
// contribute no records but are carried in Errors so the presentation
// layer can call them out.
type Snapshot struct {
	Generation uint64
	FetchedAt  time.Time

	Records   []models.ProviderEventRecord
	Flows     []models.FlowRecord
	Providers []models.Provider

	Errors []models.ProviderFetchError
}

// Result is the published output of one reconciliation run: the ordered
// group list plus the per-provider errors collected during the fetch.
// Treated as immutable once published.
type Result struct {
	Generation uint64
	FetchedAt  time.Time

	Groups []models.ReconciliationGroup
	Errors []models.ProviderFetchError
}

// Compute runs the full pipeline over a snapshot. Pure function: the
// snapshot is not mutated and the output is deterministic. Errors never
// abort the computation; a partially-failed snapshot still yields a
// valid (possibly smaller) group list.
func Compute(snap Snapshot) Result {
	idx := BuildIndex(snap.Records)
	flows := BuildFlowIndex(snap.Flows)
	names := providerNames(snap.Providers)

	groups := BuildGroups(snap.Records, idx, flows, names)

	return Result{
		Generation: snap.Generation,
		FetchedAt:  snap.FetchedAt,
		Groups:     OrderGroups(groups),
		Errors:     snap.Errors,
	}
}

// providerNames builds the immutable id -> display name lookup threaded
// through the pipeline.
func providerNames(providers []models.Provider) map[string]string {
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.DisplayName()
	}
	return names
}

// CanonicalIDOf returns the current canonical id for the record
// identified by key within the result, and whether the record was seen at
// all. Used by the mutation coordinator's fail-fast validation.
func (r Result) CanonicalIDOf(key models.RecordKey) (string, bool) {
	for _, g := range r.Groups {
		for _, m := range g.Members {
			if m.Record.Key() == key {
				return m.Record.CanonicalID, true
			}
		}
	}
	return "", false
}

// CanonicalIDs returns the distinct canonical ids present in the result,
// in group order. These are the valid link targets for unlinked records.
func (r Result) CanonicalIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, g := range r.Groups {
		if g.CanonicalID == "" {
			continue
		}
		if _, dup := seen[g.CanonicalID]; dup {
			continue
		}
		seen[g.CanonicalID] = struct{}{}
		ids = append(ids, g.CanonicalID)
	}
	return ids
}
