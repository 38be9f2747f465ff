// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"sort"

	"github.com/andygivens/orbit/internal/models"
)

// OrderGroups applies the final ordering contract: suspect collisions
// before all other groups, and within each partition most recently active
// first. The sort is stable, so groups with exactly equal timestamps keep
// their insertion order, making the ordering a total order.
func OrderGroups(groups []models.ReconciliationGroup) []models.ReconciliationGroup {
	ordered := make([]models.ReconciliationGroup, len(groups))
	copy(ordered, groups)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SuspectCollision != ordered[j].SuspectCollision {
			return ordered[i].SuspectCollision
		}
		return ordered[i].LatestActivityAt.After(ordered[j].LatestActivityAt)
	})

	return ordered
}
