// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package reconcile implements the provider-event reconciliation pipeline.
//
// Given independent, possibly stale, possibly duplicated event
// observations reported separately by each connected calendar provider,
// plus the canonical flow records describing which provider produced which
// event, the pipeline:
//
//  1. Indexes the raw snapshot (duplicate counts, canonical membership).
//  2. Matches each canonical id to its most relevant flow record to infer
//     sync direction and counterpart.
//  3. Clusters records into reconciliation groups keyed by canonical id,
//     or by a synthetic per-record key when unlinked.
//  4. Classifies and orders groups: suspect collisions first, then most
//     recently active.
//
// The whole pipeline is a pure function of one immutable Snapshot: no
// I/O, no mutation of inputs, deterministic output (stable sorts
// throughout). Fetching and mutation live in internal/troubleshoot; this
// package can be unit-tested without any network or HTTP harness.
package reconcile
