// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/operations"
)

// Operations lists recent operation records, newest first. The limit
// query parameter is clamped to the configured page sizes.
func (h *Handlers) Operations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.ops == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable,
			"Operation store is not available", nil)
		return
	}

	limit := getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 {
		limit = h.cfg.API.DefaultPageSize
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}

	ops, err := h.ops.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal,
			"Failed to list operations", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	}, started)
}

// Operation returns a single operation record by id.
func (h *Handlers) Operation(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.ops == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable,
			"Operation store is not available", nil)
		return
	}

	id := chi.URLParam(r, "id")
	op, err := h.ops.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, operations.ErrOperationNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound,
				"No operation with id "+sanitizeLogValue(id), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal,
			"Failed to load operation", err)
		return
	}

	respondSuccess(w, http.StatusOK, op, started)
}

// Providers lists the configured providers with the outcome of their
// last snapshot fetch.
func (h *Handlers) Providers(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	failures := make(map[string]string)
	counts := make(map[string]int)
	var fetchedAt string
	if result := h.refresher.Current(); result != nil {
		fetchedAt = result.FetchedAt.UTC().Format(time.RFC3339)
		for _, e := range result.Errors {
			failures[e.ProviderID] = e.Message
		}
		for _, g := range result.Groups {
			for _, m := range g.Members {
				counts[m.ProviderID]++
			}
		}
	}

	list := h.registry.Providers()
	statuses := make([]models.ProviderStatus, 0, len(list))
	for _, p := range list {
		status := models.ProviderStatus{
			Provider:       p,
			LastFetchError: failures[p.ID],
			RecordCount:    counts[p.ID],
		}
		if status.LastFetchError == "" {
			status.LastFetchAt = fetchedAt
		}
		statuses = append(statuses, status)
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"providers": statuses,
		"count":     len(statuses),
	}, started)
}
