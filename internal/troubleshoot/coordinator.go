// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package troubleshoot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/operations"
	"github.com/andygivens/orbit/internal/providers"
	"github.com/andygivens/orbit/internal/reconcile"
)

// Validation sentinels. These reject a mutation locally, before any
// network call; the action key stays (or returns to) Idle.
var (
	ErrNoSnapshot      = errors.New("no snapshot available yet")
	ErrUnknownRecord   = errors.New("record not present in current snapshot")
	ErrUnknownProvider = errors.New("provider not configured")
	ErrSameTarget      = errors.New("select a different target: record already linked to that canonical id")
	ErrNoLinkTargets   = errors.New("no valid link targets exist in the current snapshot")
	ErrNotLinked       = errors.New("record has no canonical id to unlink")
	ErrUnknownGroup    = errors.New("canonical id not present in current snapshot")
)

// Coordinator serializes corrective actions per action key and settles
// each one by releasing the key and scheduling a fresh snapshot.
//
// Nothing here mutates the published group model: results only become
// visible through the post-settlement rebuild, so the displayed state is
// always a single authoritative read.
type Coordinator struct {
	registry  *providers.Registry
	ops       *operations.Store
	refresher *Refresher

	// scheduleRefresh requests an asynchronous snapshot rebuild; wired
	// to the scheduler's trigger channel.
	scheduleRefresh func()

	states *actionStates
}

// NewCoordinator creates a mutation coordinator. ops may be nil (no
// audit records, used by some tests); scheduleRefresh must not be nil.
func NewCoordinator(registry *providers.Registry, ops *operations.Store, refresher *Refresher, scheduleRefresh func()) *Coordinator {
	return &Coordinator{
		registry:        registry,
		ops:             ops,
		refresher:       refresher,
		scheduleRefresh: scheduleRefresh,
		states:          newActionStates(),
	}
}

// Link re-associates an unlinked (or mislinked) provider event with a
// canonical id. Fails fast without a network call when the target equals
// the record's current canonical id or when no valid targets exist.
func (c *Coordinator) Link(ctx context.Context, providerID, providerEventID, targetCanonicalID string) error {
	key := models.NewActionKey(models.ActionLink, providerID, providerEventID)

	result := c.refresher.Current()
	if result == nil {
		return ErrNoSnapshot
	}
	current, seen := result.CanonicalIDOf(models.RecordKey{ProviderID: providerID, ProviderEventID: providerEventID})
	if !seen {
		return ErrUnknownRecord
	}
	if targetCanonicalID == current {
		return ErrSameTarget
	}
	if len(result.CanonicalIDs()) == 0 {
		return ErrNoLinkTargets
	}

	adapter, ok := c.registry.Get(providerID)
	if !ok {
		return ErrUnknownProvider
	}

	return c.run(ctx, key, "link", "event", providerID+":"+providerEventID,
		map[string]any{"target_canonical_id": targetCanonicalID},
		func(ctx context.Context) error {
			return adapter.LinkEvent(ctx, providerEventID, targetCanonicalID)
		})
}

// Unlink dissociates a provider event from its canonical id. Requires
// the record to currently carry one.
func (c *Coordinator) Unlink(ctx context.Context, providerID, providerEventID string) error {
	key := models.NewActionKey(models.ActionUnlink, providerID, providerEventID)

	result := c.refresher.Current()
	if result == nil {
		return ErrNoSnapshot
	}
	current, seen := result.CanonicalIDOf(models.RecordKey{ProviderID: providerID, ProviderEventID: providerEventID})
	if !seen {
		return ErrUnknownRecord
	}
	if current == "" {
		return ErrNotLinked
	}

	adapter, ok := c.registry.Get(providerID)
	if !ok {
		return ErrUnknownProvider
	}

	return c.run(ctx, key, "unlink", "event", providerID+":"+providerEventID, nil,
		func(ctx context.Context) error {
			return adapter.UnlinkEvent(ctx, providerEventID)
		})
}

// Confirm verifies a provider event still exists upstream. Pass-through:
// what confirmation means server-side is owned by the provider.
func (c *Coordinator) Confirm(ctx context.Context, providerID, providerEventID string) error {
	key := models.NewActionKey(models.ActionConfirm, providerID, providerEventID)

	adapter, ok := c.registry.Get(providerID)
	if !ok {
		return ErrUnknownProvider
	}

	return c.run(ctx, key, "confirm", "event", providerID+":"+providerEventID, nil,
		func(ctx context.Context) error {
			return adapter.ConfirmEvent(ctx, providerEventID)
		})
}

// Recreate writes a missing counterpart event for a canonical id onto
// the target provider, using the group's first member as the reference
// copy.
func (c *Coordinator) Recreate(ctx context.Context, canonicalID, targetProviderID string) error {
	key := models.NewActionKey(models.ActionRecreate, canonicalID, targetProviderID)

	result := c.refresher.Current()
	if result == nil {
		return ErrNoSnapshot
	}
	reference, ok := referenceRecord(result, canonicalID)
	if !ok {
		return ErrUnknownGroup
	}

	adapter, ok := c.registry.Get(targetProviderID)
	if !ok {
		return ErrUnknownProvider
	}

	return c.run(ctx, key, "recreate", "event", canonicalID+":"+targetProviderID,
		map[string]any{"title": reference.Title},
		func(ctx context.Context) error {
			return adapter.RecreateEvent(ctx, canonicalID, reference)
		})
}

// States returns the current per-key action states (pending keys plus
// failed keys with their messages), ordered by key string.
func (c *Coordinator) States() []models.ActionState {
	return c.states.list()
}

// run executes one corrective action under the per-key in-flight guard.
// A second submission for a key already in flight is a silent no-op: no
// network call, no state change. Settlement (success or failure) always
// releases the key, writes the operation record, and schedules a full
// re-fetch.
func (c *Coordinator) run(ctx context.Context, key models.ActionKey, kind, resourceType, resourceID string, payload map[string]any, fn func(context.Context) error) error {
	if !c.states.acquire(key) {
		logging.Debug().
			Str("action", key.String()).
			Msg("Duplicate submission ignored, action already pending")
		return nil
	}
	metrics.MutationsInFlight.Inc()
	start := time.Now()

	var op *models.Operation
	if c.ops != nil {
		var err error
		op, err = c.ops.Begin(ctx, kind, resourceType, resourceID, payload)
		if err != nil {
			// The store failing must not wedge the action key.
			logging.Error().Err(err).Str("action", key.String()).Msg("Failed to record operation")
		} else if err := c.ops.MarkRunning(ctx, op.ID); err != nil {
			logging.Error().Err(err).Str("operation_id", op.ID).Msg("Failed to mark operation running")
		}
	}

	actionErr := fn(ctx)

	if c.ops != nil && op != nil {
		if err := c.ops.Settle(ctx, op.ID, nil, actionErr); err != nil {
			logging.Error().Err(err).Str("operation_id", op.ID).Msg("Failed to settle operation")
		}
	}

	c.states.release(key, actionErr)
	metrics.MutationsInFlight.Dec()

	outcome := "success"
	if actionErr != nil {
		outcome = "failure"
	}
	metrics.RecordMutation(kind, outcome, time.Since(start))

	logging.Info().
		Str("action", key.String()).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("Corrective action settled")

	c.scheduleRefresh()

	if actionErr != nil {
		return fmt.Errorf("%s failed: %w", kind, actionErr)
	}
	return nil
}

// referenceRecord picks the reference copy for a recreate: the first
// member of the canonical group in the published ordering.
func referenceRecord(result *reconcile.Result, canonicalID string) (models.ProviderEventRecord, bool) {
	for _, g := range result.Groups {
		if g.CanonicalID != canonicalID {
			continue
		}
		if len(g.Members) == 0 {
			return models.ProviderEventRecord{}, false
		}
		return g.Members[0].Record, true
	}
	return models.ProviderEventRecord{}, false
}
