// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package providers contains the calendar provider adapters.
//
// An Adapter turns one upstream calendar system (Apple CalDAV, Skylight)
// into a uniform event source plus the corrective mutation verbs the
// troubleshooting API exposes. Adapters are wrapped in a circuit breaker
// before the rest of the service sees them, so a flapping upstream cannot
// stall snapshot refreshes for the other providers.
package providers
