// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package providers

import (
	"fmt"
	"sort"

	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/models"
)

// Registry holds the configured provider adapters, each wrapped in a
// circuit breaker. Iteration order is deterministic (sorted by id).
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds adapters for every enabled provider in the config.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter)}

	for _, pc := range cfg.EnabledProviders() {
		var inner Adapter
		switch models.ProviderKind(pc.Kind) {
		case models.ProviderKindCalDAV:
			inner = NewCalDAVAdapter(pc)
		case models.ProviderKindSkylight:
			inner = NewSkylightAdapter(pc)
		default:
			return nil, fmt.Errorf("provider %q has unsupported kind %q", pc.ID, pc.Kind)
		}

		r.adapters[pc.ID] = WithBreaker(inner)
		r.order = append(r.order, pc.ID)

		logging.Info().
			Str("provider", pc.ID).
			Str("kind", pc.Kind).
			Str("name", pc.Name).
			Msg("Provider adapter registered")
	}

	sort.Strings(r.order)
	return r, nil
}

// NewStaticRegistry builds a registry from pre-built adapters, without
// breaker wrapping. Used by tests and tooling that construct adapters
// directly.
func NewStaticRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
		r.order = append(r.order, a.ID())
	}
	sort.Strings(r.order)
	return r
}

// Get returns the adapter for a provider id.
func (r *Registry) Get(providerID string) (Adapter, bool) {
	a, ok := r.adapters[providerID]
	return a, ok
}

// All returns the adapters in sorted id order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Providers returns the provider descriptors in sorted id order.
func (r *Registry) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id].Provider())
	}
	return out
}

// DisplayNames returns the id -> human-readable name mapping used by the
// reconciliation pipeline. Providers with no configured name map to
// their raw id.
func (r *Registry) DisplayNames() map[string]string {
	names := make(map[string]string, len(r.adapters))
	for id, a := range r.adapters {
		names[id] = a.Provider().DisplayName()
	}
	return names
}

// Close closes every adapter, returning the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.order {
		if err := r.adapters[id].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
