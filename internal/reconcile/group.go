// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andygivens/orbit/internal/models"
)

// syntheticKeyPrefix namespaces per-record keys for unlinked records.
// Canonical ids are opaque tokens minted by the sync engine and never
// carry this prefix, so synthetic keys cannot collide with them.
const syntheticKeyPrefix = "unlinked"

// GroupKey resolves the reconciliation group key for a record: the
// canonical id when present, else a synthetic key derived from the
// record's identity pair. Duplicated unlinked observations share the same
// synthetic key and therefore the same group.
func GroupKey(rec models.ProviderEventRecord) string {
	if rec.CanonicalID != "" {
		return rec.CanonicalID
	}
	return fmt.Sprintf("%s:%s:%s", syntheticKeyPrefix, rec.ProviderID, rec.ProviderEventID)
}

// BuildGroups clusters records into reconciliation groups in a single
// pass over the snapshot.
//
// The first record encountered for a key creates the group and seeds its
// title and reference start; subsequent records only extend the member
// list and advance latest_activity_at. First-seen wins is deliberate: a
// group keeps a stable reference identity once it exists.
//
// Members within a group are ordered by provider display name,
// case-insensitive ascending. Group order is insertion order; final
// ordering is applied by OrderGroups.
func BuildGroups(
	records []models.ProviderEventRecord,
	idx Index,
	flows map[string]models.FlowRecord,
	names map[string]string,
) []models.ReconciliationGroup {
	byKey := make(map[string]*models.ReconciliationGroup, len(records))
	order := make([]string, 0, len(records))

	for _, rec := range records {
		key := GroupKey(rec)

		group, ok := byKey[key]
		if !ok {
			group = &models.ReconciliationGroup{
				Key:            key,
				CanonicalID:    rec.CanonicalID,
				Title:          rec.Title,
				ReferenceStart: rec.StartAt,
			}
			if flow, matched := flows[rec.CanonicalID]; matched && rec.CanonicalID != "" {
				group.LatestActivityAt = parseTimestamp(flow.OccurredAt)
			}
			byKey[key] = group
			order = append(order, key)
		}

		group.LatestActivityAt = maxTime(group.LatestActivityAt, parseTimestamp(rec.LastUpdatedAt))
		group.LatestActivityAt = maxTime(group.LatestActivityAt, parseTimestamp(rec.StartAt))

		direction := MatchDirection(rec.CanonicalID, rec.ProviderID, flows, names)
		group.Members = append(group.Members, models.GroupMember{
			ProviderID:           rec.ProviderID,
			ProviderName:         displayName(rec.ProviderID, names),
			Record:               rec,
			DirectionLabel:       direction.Label,
			DirectionCounterpart: direction.Counterpart,
			DuplicateCount:       idx.DuplicateCount(rec.Key()),
			OrbitLinkCount:       idx.OrbitLinkCount(rec.CanonicalID),
		})
	}

	groups := make([]models.ReconciliationGroup, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		finalizeGroup(group)
		groups = append(groups, *group)
	}

	return groups
}

// finalizeGroup fills the derived fields once all members are collected.
func finalizeGroup(group *models.ReconciliationGroup) {
	sort.SliceStable(group.Members, func(i, j int) bool {
		return strings.ToLower(group.Members[i].ProviderName) < strings.ToLower(group.Members[j].ProviderName)
	})

	distinct := make(map[string]struct{}, len(group.Members))
	suspect := len(group.Members) > 1
	for _, m := range group.Members {
		distinct[m.ProviderID] = struct{}{}
		if m.DuplicateCount > 1 {
			suspect = true
		}
	}

	group.ProviderCount = len(distinct)
	group.SuspectCollision = suspect
}
