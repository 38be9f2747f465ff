// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package troubleshoot

import (
	"context"
	"errors"
	"time"

	"github.com/andygivens/orbit/internal/logging"
)

// Scheduler drives the refresher: an immediate refresh on start, a
// periodic tick, and an on-demand trigger used by the API refresh
// endpoint and by mutation settlement. Runs as a suture-supervised
// service.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration
	trigger   chan struct{}
}

// NewScheduler creates a refresh scheduler.
func NewScheduler(refresher *Refresher, interval time.Duration) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
	}
}

// TriggerRefresh requests an asynchronous refresh. Coalescing: when a
// trigger is already queued, another one is redundant and dropped.
func (s *Scheduler) TriggerRefresh() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service: refresh immediately, then on every
// tick or trigger until the context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.refreshOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refreshOnce(ctx)
		case <-s.trigger:
			s.refreshOnce(ctx)
		}
	}
}

func (s *Scheduler) refreshOnce(ctx context.Context) {
	if _, err := s.refresher.Refresh(ctx); err != nil {
		if errors.Is(err, ErrStaleGeneration) || errors.Is(err, context.Canceled) {
			return
		}
		logging.Error().Err(err).Msg("Scheduled refresh failed")
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
