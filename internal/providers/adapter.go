// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package providers

import (
	"context"
	"errors"
	"time"

	"github.com/andygivens/orbit/internal/models"
)

// ErrEventNotFound is returned by mutation verbs when the upstream
// calendar no longer has the referenced event.
var ErrEventNotFound = errors.New("provider event not found")

// Adapter is one configured calendar provider.
//
// ListEvents returns the provider's raw observations for a time window.
// The returned records carry a canonical id only when the upstream event
// is tagged with one (CalDAV X-ORBIT-ID property, Skylight orbit- uid
// prefix); untagged events come back unlinked.
//
// The mutation verbs mirror the troubleshooting API: Link tags an
// upstream event with a canonical id, Unlink removes the tag, Confirm
// verifies the event still exists upstream, Recreate writes a missing
// counterpart event onto this provider.
type Adapter interface {
	// ID returns the provider id this adapter serves.
	ID() string

	// Provider returns the provider descriptor for API responses.
	Provider() models.Provider

	ListEvents(ctx context.Context, since, until time.Time, limit int) ([]models.ProviderEventRecord, error)

	LinkEvent(ctx context.Context, providerEventID, canonicalID string) error
	UnlinkEvent(ctx context.Context, providerEventID string) error
	ConfirmEvent(ctx context.Context, providerEventID string) error
	RecreateEvent(ctx context.Context, canonicalID string, event models.ProviderEventRecord) error

	Close() error
}
