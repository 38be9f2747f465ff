// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package troubleshoot

import (
	"sort"
	"sync"

	"github.com/andygivens/orbit/internal/models"
)

// actionStates tracks the per-key action state machine:
// Idle -> Pending -> Idle, with failures surfacing a message until the
// next submission for that key. The in-flight guard is a presence check,
// not a general mutex; different keys never contend beyond the map lock.
type actionStates struct {
	mu       sync.Mutex
	inflight map[models.ActionKey]struct{}
	failed   map[models.ActionKey]string
}

func newActionStates() *actionStates {
	return &actionStates{
		inflight: make(map[models.ActionKey]struct{}),
		failed:   make(map[models.ActionKey]string),
	}
}

// acquire claims a key. Returns false when the key already has an
// operation in flight.
func (s *actionStates) acquire(key models.ActionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	delete(s.failed, key) // a new submission clears the old failure
	return true
}

// release settles a key. A non-nil error parks the key in failed state
// until the next acquire.
func (s *actionStates) release(key models.ActionKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
	if err != nil {
		s.failed[key] = err.Error()
	}
}

// list returns the non-idle states, ordered by key string for
// deterministic output.
func (s *actionStates) list() []models.ActionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ActionState, 0, len(s.inflight)+len(s.failed))
	for key := range s.inflight {
		out = append(out, models.ActionState{Key: key, Phase: models.ActionPending})
	}
	for key, msg := range s.failed {
		out = append(out, models.ActionState{Key: key, Phase: models.ActionFailed, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
