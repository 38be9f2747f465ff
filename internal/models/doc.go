// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package models defines the shared data structures for Orbit.
//
// The package contains three families of types:
//
//   - Domain records: Provider, ProviderEventRecord, FlowRecord: the raw
//     observations fetched from calendar providers and the sync engine's
//     run history. Timestamps on these records are kept as the raw RFC3339
//     strings received on the wire; parsing is deliberately deferred to the
//     reconciliation pipeline, which treats unparseable values as
//     earliest-possible rather than failing.
//
//   - Reconciliation output: ReconciliationGroup, GroupMember,
//     DirectionLabel: the derived model published to the API. Groups are
//     immutable once published; a refresh rebuilds them from scratch.
//
//   - Surface types: ActionState, Operation, and the APIResponse envelope
//     shared by every HTTP endpoint.
package models
