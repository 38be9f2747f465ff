// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/models"
)

// Direction is the resolved sync direction for one group member.
type Direction struct {
	Label        models.DirectionLabel
	Counterpart  string
	FlowRecorded bool
}

// BuildFlowIndex collapses the fetched flow records into one entry per
// canonical id, keeping the most relevant record: the one with the
// latest parseable occurred_at, first-seen winning on exact ties.
// Records without a canonical id are skipped with a warning.
func BuildFlowIndex(flows []models.FlowRecord) map[string]models.FlowRecord {
	index := make(map[string]models.FlowRecord, len(flows))

	for _, flow := range flows {
		if flow.CanonicalID == "" {
			logging.Warn().Str("title", flow.Title).Msg("Flow record without canonical id skipped")
			continue
		}
		existing, ok := index[flow.CanonicalID]
		if !ok {
			index[flow.CanonicalID] = flow
			continue
		}
		if parseTimestamp(flow.OccurredAt).After(parseTimestamp(existing.OccurredAt)) {
			index[flow.CanonicalID] = flow
		}
	}

	return index
}

// MatchDirection resolves the direction label and counterpart name for a
// (canonicalID, providerID) pair against the flow index.
//
// Rules:
//   - No matching flow record: Unmapped.
//   - providerID equals the flow's source: Outbound, counterpart is the
//     target provider's display name.
//   - providerID equals the flow's target: Inbound, counterpart is the
//     source provider's display name.
//   - A flow exists but providerID matches neither side: Unmapped with a
//     soft warning. This may be a third provider observing a two-party
//     sync or a data inconsistency; it is surfaced, not repaired.
//
// names maps provider ids to display names; unknown ids fall back to the
// raw id.
func MatchDirection(canonicalID, providerID string, flows map[string]models.FlowRecord, names map[string]string) Direction {
	if canonicalID == "" {
		return Direction{Label: models.DirectionUnmapped}
	}

	flow, ok := flows[canonicalID]
	if !ok {
		return Direction{Label: models.DirectionUnmapped}
	}

	switch providerID {
	case flow.SourceProviderID:
		if flow.SourceProviderID != "" {
			return Direction{
				Label:        models.DirectionOutbound,
				Counterpart:  displayName(flow.TargetProviderID, names),
				FlowRecorded: true,
			}
		}
	case flow.TargetProviderID:
		if flow.TargetProviderID != "" {
			return Direction{
				Label:        models.DirectionInbound,
				Counterpart:  displayName(flow.SourceProviderID, names),
				FlowRecorded: true,
			}
		}
	}

	logging.Warn().
		Str("canonical_id", canonicalID).
		Str("provider_id", providerID).
		Str("flow_source", flow.SourceProviderID).
		Str("flow_target", flow.TargetProviderID).
		Msg("Flow record matches canonical id but neither side matches provider")

	return Direction{Label: models.DirectionUnmapped, FlowRecorded: true}
}

// displayName resolves a provider id through the name map, falling back
// to the raw id when unknown or empty.
func displayName(providerID string, names map[string]string) string {
	if providerID == "" {
		return ""
	}
	if name, ok := names[providerID]; ok && name != "" {
		return name
	}
	return providerID
}
