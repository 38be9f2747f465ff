// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"testing"
	"time"

	"github.com/andygivens/orbit/internal/models"
)

var testNames = map[string]string{
	"apple":    "Apple iCloud",
	"skylight": "Skylight Frame",
}

func buildGroupsFor(records []models.ProviderEventRecord, flows []models.FlowRecord) []models.ReconciliationGroup {
	return BuildGroups(records, BuildIndex(records), BuildFlowIndex(flows), testNames)
}

func TestGroupKey(t *testing.T) {
	tests := []struct {
		name string
		rec  models.ProviderEventRecord
		want string
	}{
		{
			name: "linked record keys by canonical id",
			rec:  record("apple", "evt-1", "orbit-1"),
			want: "orbit-1",
		},
		{
			name: "unlinked record keys by synthetic pair key",
			rec:  record("apple", "evt-1", ""),
			want: "unlinked:apple:evt-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupKey(tt.rec); got != tt.want {
				t.Errorf("GroupKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every record belongs to exactly one group, and the group's key matches
// the record's canonical id when present.
func TestBuildGroupsEveryRecordInExactlyOneGroup(t *testing.T) {
	records := []models.ProviderEventRecord{
		record("apple", "evt-1", "orbit-1"),
		record("skylight", "evt-7", "orbit-1"),
		record("apple", "evt-2", ""),
		record("apple", "evt-2", ""),
		record("skylight", "evt-3", ""),
	}

	groups := buildGroupsFor(records, nil)

	total := 0
	for _, g := range groups {
		total += len(g.Members)
		for _, m := range g.Members {
			if got := GroupKey(m.Record); got != g.Key {
				t.Errorf("member %v placed in group %q, want %q", m.Record.Key(), g.Key, got)
			}
		}
	}
	if total != len(records) {
		t.Errorf("total members = %d, want %d (every record in exactly one group)", total, len(records))
	}
}

// Scenario A: two providers reporting the same canonical id form one
// group flagged as a suspect collision.
func TestBuildGroupsTwoProvidersShareCanonicalID(t *testing.T) {
	records := []models.ProviderEventRecord{
		record("apple", "evt-1", "orbit-1"),
		record("skylight", "evt-9", "orbit-1"),
	}

	groups := buildGroupsFor(records, nil)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.ProviderCount != 2 {
		t.Errorf("ProviderCount = %d, want 2", g.ProviderCount)
	}
	if !g.SuspectCollision {
		t.Error("SuspectCollision = false, want true for multi-member group")
	}
	for _, m := range g.Members {
		if m.OrbitLinkCount != 2 {
			t.Errorf("OrbitLinkCount = %d, want 2", m.OrbitLinkCount)
		}
	}
}

// Scenario B: a duplicated unlinked observation shares one synthetic key
// and is flagged through its duplicate count.
func TestBuildGroupsDuplicateFetchSharesSyntheticKey(t *testing.T) {
	records := []models.ProviderEventRecord{
		record("apple", "evt-42", ""),
		record("apple", "evt-42", ""),
	}

	groups := buildGroupsFor(records, nil)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1 (same synthetic key)", len(groups))
	}
	g := groups[0]
	if g.Key != "unlinked:apple:evt-42" {
		t.Errorf("Key = %q, want synthetic pair key", g.Key)
	}
	if !g.SuspectCollision {
		t.Error("SuspectCollision = false, want true due to duplicate count")
	}
	for _, m := range g.Members {
		if m.DuplicateCount != 2 {
			t.Errorf("DuplicateCount = %d, want 2", m.DuplicateCount)
		}
		if m.OrbitLinkCount != 0 {
			t.Errorf("OrbitLinkCount = %d, want 0 for unlinked record", m.OrbitLinkCount)
		}
	}
}

// Scenario C: a canonical id with no matching flow record still groups
// correctly; direction degrades to unmapped instead of excluding the
// record.
func TestBuildGroupsLinkedRecordWithoutFlow(t *testing.T) {
	records := []models.ProviderEventRecord{
		record("apple", "evt-1", "orbit-2"),
	}

	groups := buildGroupsFor(records, nil)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if len(g.Members) != 1 {
		t.Fatalf("members = %d, want 1", len(g.Members))
	}
	if g.Members[0].DirectionLabel != models.DirectionUnmapped {
		t.Errorf("DirectionLabel = %q, want unmapped", g.Members[0].DirectionLabel)
	}
	if g.SuspectCollision {
		t.Error("SuspectCollision = true, want false for a lone clean member")
	}
}

func TestBuildGroupsFirstSeenWinsForTitleAndReferenceStart(t *testing.T) {
	first := record("apple", "evt-1", "orbit-1")
	first.Title = "Original title"
	first.StartAt = "2026-08-10T09:00:00Z"

	second := record("skylight", "evt-2", "orbit-1")
	second.Title = "Renamed title"
	second.StartAt = "2026-08-11T09:00:00Z"

	groups := buildGroupsFor([]models.ProviderEventRecord{first, second}, nil)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Title != "Original title" {
		t.Errorf("Title = %q, want first-seen title preserved", g.Title)
	}
	if g.ReferenceStart != "2026-08-10T09:00:00Z" {
		t.Errorf("ReferenceStart = %q, want first-seen start preserved", g.ReferenceStart)
	}
}

func TestBuildGroupsLatestActivityMergesMembersAndFlow(t *testing.T) {
	rec1 := record("apple", "evt-1", "orbit-1")
	rec1.StartAt = "2026-08-10T09:00:00Z"
	rec1.LastUpdatedAt = "2026-08-12T09:00:00Z"

	rec2 := record("skylight", "evt-2", "orbit-1")
	rec2.StartAt = "2026-08-11T09:00:00Z"
	rec2.LastUpdatedAt = "garbage"

	flows := []models.FlowRecord{
		{CanonicalID: "orbit-1", SourceProviderID: "apple", TargetProviderID: "skylight", OccurredAt: "2026-08-13T09:00:00Z"},
	}

	groups := buildGroupsFor([]models.ProviderEventRecord{rec1, rec2}, flows)

	want := time.Date(2026, 8, 13, 9, 0, 0, 0, time.UTC)
	if !groups[0].LatestActivityAt.Equal(want) {
		t.Errorf("LatestActivityAt = %v, want flow occurred_at %v", groups[0].LatestActivityAt, want)
	}
}

func TestBuildGroupsUnparseableTimestampsDoNotCrash(t *testing.T) {
	rec := record("apple", "evt-1", "")
	rec.StartAt = "not a timestamp"
	rec.LastUpdatedAt = ""

	groups := buildGroupsFor([]models.ProviderEventRecord{rec}, nil)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if !groups[0].LatestActivityAt.IsZero() {
		t.Errorf("LatestActivityAt = %v, want zero time for unparseable inputs", groups[0].LatestActivityAt)
	}
}

func TestBuildGroupsMembersSortedByProviderName(t *testing.T) {
	records := []models.ProviderEventRecord{
		record("skylight", "evt-1", "orbit-1"),
		record("apple", "evt-2", "orbit-1"),
	}

	groups := buildGroupsFor(records, nil)

	g := groups[0]
	if g.Members[0].ProviderName != "Apple iCloud" || g.Members[1].ProviderName != "Skylight Frame" {
		t.Errorf("member order = [%q, %q], want case-insensitive ascending by display name",
			g.Members[0].ProviderName, g.Members[1].ProviderName)
	}
}
