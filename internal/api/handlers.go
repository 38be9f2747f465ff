// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package api provides the HTTP surface of the troubleshooting service:
// chi routing, the handler set, and the uniform response envelope.
package api

import (
	"net/http"
	"time"

	"github.com/andygivens/orbit/internal/auth"
	"github.com/andygivens/orbit/internal/cache"
	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/operations"
	"github.com/andygivens/orbit/internal/providers"
	"github.com/andygivens/orbit/internal/troubleshoot"
)

// Handlers holds the handler dependencies. All fields are wired once at
// startup and read-only afterwards.
type Handlers struct {
	cfg         *config.Config
	registry    *providers.Registry
	refresher   *troubleshoot.Refresher
	coordinator *troubleshoot.Coordinator
	ops         *operations.Store
	jwtManager  *auth.JWTManager
	credentials *auth.CredentialChecker
	cache       *cache.Cache
	startTime   time.Time
}

// NewHandlers creates the handler set. ops may be nil when the operation
// store failed to open; the operations endpoints then report 503.
func NewHandlers(
	cfg *config.Config,
	registry *providers.Registry,
	refresher *troubleshoot.Refresher,
	coordinator *troubleshoot.Coordinator,
	ops *operations.Store,
	jwtManager *auth.JWTManager,
	credentials *auth.CredentialChecker,
	groupCache *cache.Cache,
) *Handlers {
	return &Handlers{
		cfg:         cfg,
		registry:    registry,
		refresher:   refresher,
		coordinator: coordinator,
		ops:         ops,
		jwtManager:  jwtManager,
		credentials: credentials,
		cache:       groupCache,
		startTime:   time.Now(),
	}
}

// healthPayload is the body of GET /api/v1/health.
type healthPayload struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Generation    uint64 `json:"generation"`
	Providers     int    `json:"providers"`
}

// Health reports overall service health: degraded while no snapshot has
// been published yet.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	status := "ok"
	var generation uint64
	if result := h.refresher.Current(); result != nil {
		generation = result.Generation
	} else {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, healthPayload{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Generation:    generation,
		Providers:     len(h.registry.All()),
	}, started)
}

// HealthLive is the kubelet-style liveness probe.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady reports ready once the first snapshot has been published.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.refresher.Current() == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable,
			"No snapshot published yet", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, time.Now())
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=1,max=200"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login exchanges the configured admin credentials for a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeValidation, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.credentials.Check(req.Username, req.Password); err != nil {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Login rejected")
		respondError(w, http.StatusUnauthorized, errCodeAuthentication,
			"Invalid username or password", nil)
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username, "admin")
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal,
			"Failed to issue session token", err)
		return
	}

	logging.Info().Str("username", sanitizeLogValue(req.Username)).Msg("Login succeeded")
	respondSuccess(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtManager.SessionTimeout().Seconds()),
	}, started)
}
