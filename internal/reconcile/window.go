// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package reconcile

import (
	"fmt"
	"time"
)

// WindowPresets maps the window tokens accepted by the troubleshooting
// API to their durations. The same presets serve both the past and the
// future side of the window.
var WindowPresets = map[string]time.Duration{
	"0d":  0,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"14d": 14 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

const (
	// DefaultPastWindow is applied when no past window token is given.
	DefaultPastWindow = "7d"

	// DefaultFutureWindow is applied when no future window token is given.
	DefaultFutureWindow = "0d"
)

// Window is a resolved absolute time range for a snapshot fetch.
type Window struct {
	Since time.Time
	Until time.Time
}

// ResolveWindow turns past/future preset tokens into an absolute range
// around now. Empty tokens fall back to the defaults; unknown tokens are
// a validation error.
func ResolveWindow(past, future string, now time.Time) (Window, error) {
	if past == "" {
		past = DefaultPastWindow
	}
	if future == "" {
		future = DefaultFutureWindow
	}

	pastDur, ok := WindowPresets[past]
	if !ok {
		return Window{}, fmt.Errorf("unsupported window %q", past)
	}
	futureDur, ok := WindowPresets[future]
	if !ok {
		return Window{}, fmt.Errorf("unsupported future window %q", future)
	}

	return Window{
		Since: now.Add(-pastDur),
		Until: now.Add(futureDur),
	}, nil
}

// ValidWindowToken reports whether token is a known window preset.
func ValidWindowToken(token string) bool {
	_, ok := WindowPresets[token]
	return ok
}
