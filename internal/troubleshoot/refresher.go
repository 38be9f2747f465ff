// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package troubleshoot owns the live reconciliation state: the snapshot
// refresher that rebuilds the group model from provider fetches, and the
// mutation coordinator that serializes corrective actions.
package troubleshoot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andygivens/orbit/internal/flows"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/providers"
	"github.com/andygivens/orbit/internal/reconcile"
)

// ErrStaleGeneration is returned when a refresh completed but a newer
// generation had already started; its result was discarded, not
// published.
var ErrStaleGeneration = errors.New("refresh superseded by newer generation")

// Refresher rebuilds the reconciliation model from scratch on every
// trigger. The model is never patched incrementally: a refresh fetches
// all providers (concurrently, each awaited independently), fetches the
// flow history, computes the ordered group list, and publishes it as one
// immutable Result.
//
// A generation counter guards against slow fetches from a superseded
// refresh overwriting fresher data: every refresh claims a generation
// up front, and publishing is skipped when a newer generation has been
// claimed since. There is no hard cancellation of outstanding requests,
// only result-discarding.
type Refresher struct {
	registry   *providers.Registry
	flowSource flows.Source
	syncID     string
	fetchLimit int

	generation atomic.Uint64

	mu           sync.RWMutex
	current      *reconcile.Result
	pastWindow   string
	futureWindow string
}

// NewRefresher creates a refresher. flowSource may be nil, in which case
// every group degrades to unmapped direction labels.
func NewRefresher(registry *providers.Registry, flowSource flows.Source, syncID string, fetchLimit int, pastWindow, futureWindow string) *Refresher {
	if pastWindow == "" {
		pastWindow = reconcile.DefaultPastWindow
	}
	if futureWindow == "" {
		futureWindow = reconcile.DefaultFutureWindow
	}
	return &Refresher{
		registry:     registry,
		flowSource:   flowSource,
		syncID:       syncID,
		fetchLimit:   fetchLimit,
		pastWindow:   pastWindow,
		futureWindow: futureWindow,
	}
}

// Current returns the most recently published result, or nil before the
// first successful refresh.
func (r *Refresher) Current() *reconcile.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Window returns the active window preset tokens.
func (r *Refresher) Window() (past, future string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pastWindow, r.futureWindow
}

// SetWindow changes the active window presets. The generation counter is
// bumped so any in-flight refresh for the old window is discarded on
// completion.
func (r *Refresher) SetWindow(past, future string) error {
	if !reconcile.ValidWindowToken(past) || !reconcile.ValidWindowToken(future) {
		return errors.New("invalid window preset")
	}
	r.mu.Lock()
	r.pastWindow = past
	r.futureWindow = future
	r.mu.Unlock()
	r.generation.Add(1)
	return nil
}

// providerFetch is one settled per-provider fetch.
type providerFetch struct {
	provider models.Provider
	records  []models.ProviderEventRecord
	err      error
}

// Refresh performs one full snapshot rebuild. Per-provider fetches fan
// out concurrently; a failing provider contributes an error entry
// instead of records and never blocks the others. Returns the published
// result, or ErrStaleGeneration when a newer refresh claimed the
// generation while this one was in flight.
func (r *Refresher) Refresh(ctx context.Context) (*reconcile.Result, error) {
	gen := r.generation.Add(1)
	start := time.Now()

	r.mu.RLock()
	past, future := r.pastWindow, r.futureWindow
	r.mu.RUnlock()

	window, err := reconcile.ResolveWindow(past, future, start)
	if err != nil {
		return nil, err
	}

	adapters := r.registry.All()
	fetches := make([]providerFetch, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, a providers.Adapter) {
			defer wg.Done()
			fetchStart := time.Now()
			records, err := a.ListEvents(ctx, window.Since, window.Until, r.fetchLimit)
			metrics.RecordProviderFetch(a.ID(), len(records), time.Since(fetchStart), err)
			if err != nil {
				logging.Warn().
					Err(err).
					Str("provider", a.ID()).
					Uint64("generation", gen).
					Msg("Provider fetch failed")
			}
			fetches[i] = providerFetch{provider: a.Provider(), records: records, err: err}
		}(i, adapter)
	}

	var flowRecords []models.FlowRecord
	var flowErr error
	if r.flowSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flowRecords, flowErr = r.flowSource.List(ctx, r.syncID)
			if flowErr != nil {
				logging.Warn().
					Err(flowErr).
					Str("sync_id", r.syncID).
					Uint64("generation", gen).
					Msg("Flow history fetch failed")
			}
		}()
	}
	wg.Wait()

	snap := reconcile.Snapshot{
		Generation: gen,
		FetchedAt:  start.UTC(),
		Providers:  r.registry.Providers(),
	}
	for _, f := range fetches {
		if f.err != nil {
			snap.Errors = append(snap.Errors, models.ProviderFetchError{
				ProviderID:   f.provider.ID,
				ProviderName: f.provider.DisplayName(),
				Message:      f.err.Error(),
			})
			continue
		}
		snap.Records = append(snap.Records, f.records...)
	}
	if flowErr != nil {
		// A failed flow fetch degrades direction labels, it does not
		// abort the snapshot.
		snap.Errors = append(snap.Errors, models.ProviderFetchError{
			ProviderID: "flows",
			Message:    flowErr.Error(),
		})
	}
	snap.Flows = flowRecords

	result := reconcile.Compute(snap)

	r.mu.Lock()
	if r.generation.Load() != gen {
		r.mu.Unlock()
		metrics.SnapshotStaleDiscards.Inc()
		logging.Debug().
			Uint64("generation", gen).
			Uint64("latest", r.generation.Load()).
			Msg("Discarding stale snapshot")
		return nil, ErrStaleGeneration
	}
	r.current = &result
	r.mu.Unlock()

	collisions := 0
	for _, g := range result.Groups {
		if g.SuspectCollision {
			collisions++
		}
	}
	metrics.RecordSnapshot(gen, len(result.Groups), collisions, time.Since(start))

	logging.Info().
		Uint64("generation", gen).
		Int("records", len(snap.Records)).
		Int("groups", len(result.Groups)).
		Int("collisions", collisions).
		Int("provider_errors", len(snap.Errors)).
		Dur("elapsed", time.Since(start)).
		Msg("Snapshot published")

	return &result, nil
}
