// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "Unsupported window '90d'"
//	  },
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
// QueryTimeMS is the server-side computation time in milliseconds; Cached
// reports whether the group list was served from the published snapshot
// without a recompute.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - PROVIDER_ERROR: upstream provider call failed
//   - ACTION_IN_FLIGHT: same action key already pending
//   - NOT_FOUND: resource doesn't exist
//   - AUTHENTICATION_ERROR: invalid/missing credentials
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// GroupsResponse is the payload for GET /api/v1/troubleshoot/groups: the
// ordered group list plus the errors and busy state the presentation layer
// needs to render banners and disable controls.
type GroupsResponse struct {
	Groups []ReconciliationGroup `json:"groups"`

	// Generation identifies the snapshot the groups were computed from.
	Generation uint64 `json:"generation"`

	// FetchedAt is when the snapshot fan-out settled.
	FetchedAt time.Time `json:"fetched_at"`

	// ProviderErrors holds one entry per failed provider fetch. Failed
	// providers are called out explicitly, never silently omitted.
	ProviderErrors []ProviderFetchError `json:"provider_errors,omitempty"`

	// Actions is the per-key busy/failed state for corrective actions.
	Actions []ActionState `json:"actions,omitempty"`
}

// ProviderFetchError reports a single failed provider fetch.
type ProviderFetchError struct {
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name,omitempty"`
	Message      string `json:"message"`
}
