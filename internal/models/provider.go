// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

// ProviderKind identifies the upstream calendar system behind a provider.
type ProviderKind string

const (
	// ProviderKindCalDAV is an Apple/iCloud CalDAV calendar source.
	ProviderKindCalDAV ProviderKind = "caldav"

	// ProviderKindSkylight is a Skylight frame calendar source.
	ProviderKindSkylight ProviderKind = "skylight"
)

// Provider describes one configured calendar provider.
type Provider struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    ProviderKind `json:"kind"`
	Enabled bool         `json:"enabled"`
}

// DisplayName returns the human-readable provider label, falling back to
// the raw provider id when no name is configured.
func (p Provider) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// ProviderStatus reports the outcome of the most recent fetch for a
// provider, exposed on GET /api/v1/providers.
type ProviderStatus struct {
	Provider
	LastFetchAt    string `json:"last_fetch_at,omitempty"`
	LastFetchError string `json:"last_fetch_error,omitempty"`
	RecordCount    int    `json:"record_count"`
}
