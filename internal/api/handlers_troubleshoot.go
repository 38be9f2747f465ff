// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andygivens/orbit/internal/cache"
	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/troubleshoot"
)

type groupsQuery struct {
	Past   string `validate:"omitempty,window_preset"`
	Future string `validate:"omitempty,window_preset"`
}

// Groups serves the ordered reconciliation group list from the current
// snapshot. Passing past/future window tokens narrows or widens the
// window; a window change triggers a synchronous refresh so the response
// reflects the requested range.
func (h *Handlers) Groups(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	q := groupsQuery{
		Past:   r.URL.Query().Get("past"),
		Future: r.URL.Query().Get("future"),
	}
	if apiErr := validateRequest(&q); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if changed, err := h.applyWindow(r.Context(), q); err != nil {
		if errors.Is(err, troubleshoot.ErrStaleGeneration) {
			// A newer refresh superseded this one; the published
			// snapshot is current enough to serve.
		} else {
			respondError(w, http.StatusBadGateway, errCodeProvider,
				"Refresh for the requested window failed", err)
			return
		}
	} else if changed {
		h.cache.Clear()
	}

	result := h.refresher.Current()
	if result == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable,
			"No snapshot published yet", nil)
		return
	}

	past, future := h.refresher.Window()
	cacheKey := cache.GenerateKey("groups", struct {
		Past       string
		Future     string
		Generation uint64
	}{past, future, result.Generation})

	// Action states are live and never cached; each response carries a
	// fresh copy over the cached group list.
	if cached, ok := h.cache.Get(cacheKey); ok {
		if stored, ok := cached.(models.GroupsResponse); ok {
			stored.Actions = h.coordinator.States()
			respondJSON(w, http.StatusOK, &models.APIResponse{
				Status: "success",
				Data:   stored,
				Metadata: models.Metadata{
					Timestamp:   time.Now(),
					QueryTimeMS: time.Since(started).Milliseconds(),
					Cached:      true,
				},
			})
			return
		}
	}

	payload := models.GroupsResponse{
		Groups:         result.Groups,
		Generation:     result.Generation,
		FetchedAt:      result.FetchedAt,
		ProviderErrors: result.Errors,
	}
	h.cache.Set(cacheKey, payload)

	payload.Actions = h.coordinator.States()
	respondSuccess(w, http.StatusOK, payload, started)
}

// applyWindow updates the refresher window when the query asks for a
// different one, refreshing synchronously so the caller sees the new
// range. Reports whether the window changed.
func (h *Handlers) applyWindow(ctx context.Context, q groupsQuery) (bool, error) {
	if q.Past == "" && q.Future == "" {
		return false, nil
	}

	past, future := h.refresher.Window()
	if q.Past != "" {
		past = q.Past
	}
	if q.Future != "" {
		future = q.Future
	}

	curPast, curFuture := h.refresher.Window()
	if past == curPast && future == curFuture {
		return false, nil
	}

	if err := h.refresher.SetWindow(past, future); err != nil {
		return false, err
	}
	if _, err := h.refresher.Refresh(ctx); err != nil {
		return true, err
	}
	return true, nil
}

type refreshResponse struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at"`
	Groups     int       `json:"groups"`
}

// Refresh triggers a synchronous snapshot rebuild and reports the new
// generation. A concurrent refresh superseding this one yields 202.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	result, err := h.refresher.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, troubleshoot.ErrStaleGeneration) {
			respondSuccess(w, http.StatusAccepted,
				map[string]string{"status": "superseded"}, started)
			return
		}
		respondError(w, http.StatusBadGateway, errCodeProvider,
			"Refresh failed", err)
		return
	}

	h.cache.Clear()
	respondSuccess(w, http.StatusOK, refreshResponse{
		Generation: result.Generation,
		FetchedAt:  result.FetchedAt,
		Groups:     len(result.Groups),
	}, started)
}

type linkRequest struct {
	ProviderID      string `json:"provider_id" validate:"required,min=1,max=100"`
	ProviderEventID string `json:"provider_event_id" validate:"required,min=1,max=255"`
	CanonicalID     string `json:"canonical_id" validate:"required,min=1,max=255"`
}

type eventRequest struct {
	ProviderID      string `json:"provider_id" validate:"required,min=1,max=100"`
	ProviderEventID string `json:"provider_event_id" validate:"required,min=1,max=255"`
}

type recreateRequest struct {
	CanonicalID      string `json:"canonical_id" validate:"required,min=1,max=255"`
	TargetProviderID string `json:"target_provider_id" validate:"required,min=1,max=100"`
}

// Link re-points a provider event at a canonical id.
func (h *Handlers) Link(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req linkRequest
	if !h.decodeMutation(w, r, &req) {
		return
	}

	err := h.coordinator.Link(r.Context(), req.ProviderID, req.ProviderEventID, req.CanonicalID)
	h.respondMutation(w, "link", err, started)
}

// Unlink dissociates a provider event from its canonical id.
func (h *Handlers) Unlink(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req eventRequest
	if !h.decodeMutation(w, r, &req) {
		return
	}

	err := h.coordinator.Unlink(r.Context(), req.ProviderID, req.ProviderEventID)
	h.respondMutation(w, "unlink", err, started)
}

// Confirm verifies a provider event still exists upstream.
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req eventRequest
	if !h.decodeMutation(w, r, &req) {
		return
	}

	err := h.coordinator.Confirm(r.Context(), req.ProviderID, req.ProviderEventID)
	h.respondMutation(w, "confirm", err, started)
}

// Recreate writes a missing counterpart event onto the target provider.
func (h *Handlers) Recreate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req recreateRequest
	if !h.decodeMutation(w, r, &req) {
		return
	}

	err := h.coordinator.Recreate(r.Context(), req.CanonicalID, req.TargetProviderID)
	h.respondMutation(w, "recreate", err, started)
}

// decodeMutation decodes and validates a mutation body, writing the
// error response itself on failure.
func (h *Handlers) decodeMutation(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSONBody(r, dst); err != nil {
		respondError(w, http.StatusBadRequest, errCodeValidation, err.Error(), nil)
		return false
	}
	if apiErr := validateRequest(dst); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return false
	}
	return true
}

// respondMutation maps coordinator outcomes to HTTP statuses. A nil
// error covers both a settled action and a silently ignored duplicate;
// either way the caller re-reads the group list for the outcome.
func (h *Handlers) respondMutation(w http.ResponseWriter, action string, err error, started time.Time) {
	switch {
	case err == nil:
		respondSuccess(w, http.StatusOK, map[string]string{
			"action": action,
			"status": "accepted",
		}, started)
	case errors.Is(err, troubleshoot.ErrNoSnapshot):
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable,
			"No snapshot published yet", nil)
	case errors.Is(err, troubleshoot.ErrUnknownRecord),
		errors.Is(err, troubleshoot.ErrUnknownGroup),
		errors.Is(err, troubleshoot.ErrUnknownProvider):
		respondError(w, http.StatusNotFound, errCodeNotFound, err.Error(), nil)
	case errors.Is(err, troubleshoot.ErrSameTarget),
		errors.Is(err, troubleshoot.ErrNoLinkTargets),
		errors.Is(err, troubleshoot.ErrNotLinked):
		respondError(w, http.StatusBadRequest, errCodeValidation, err.Error(), nil)
	default:
		respondError(w, http.StatusBadGateway, errCodeProvider, err.Error(), err)
	}
}
