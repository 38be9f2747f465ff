// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

/*
skylight.go - Skylight frame calendar adapter

Implements the Adapter interface over the Skylight REST API:
session-based login (POST /api/sessions, then Basic session:token),
frame and category discovery, and JSON:API calendar_events resources.
Events are scoped to one frame and filtered to one category; events
outside the configured category belong to other households on the frame
and are never reported as observations.

Canonical linkage rides on the event uid attribute: events the sync
engine created carry an "orbit-<canonicalID>" uid.
*/

package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/models"
)

// DefaultSkylightURL is used when the provider config leaves the URL empty.
const DefaultSkylightURL = "https://app.ourskylight.com"

// orbitUIDPrefix marks Skylight events created or linked by the sync
// engine. The remainder of the uid is the canonical id.
const orbitUIDPrefix = "orbit-"

// skylightSessionTTL is how long a login is trusted before
// re-authenticating. The upstream tokens last longer; refreshing at 12h
// matches the API client the frames themselves use.
const skylightSessionTTL = 12 * time.Hour

// SkylightAdapter talks to the Skylight frame calendar API.
type SkylightAdapter struct {
	provider     models.Provider
	baseURL      string
	email        string
	password     string
	frameName    string
	categoryName string

	httpClient *http.Client
	limiter    *rate.Limiter

	mu         sync.Mutex
	authHeader string
	lastLogin  time.Time
	frameID    string
	categoryID string
}

var _ Adapter = (*SkylightAdapter)(nil)

// NewSkylightAdapter creates a Skylight adapter from provider configuration.
func NewSkylightAdapter(cfg config.ProviderConfig) *SkylightAdapter {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultSkylightURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &SkylightAdapter{
		provider: models.Provider{
			ID:      cfg.ID,
			Name:    cfg.Name,
			Kind:    models.ProviderKindSkylight,
			Enabled: cfg.Enabled,
		},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		email:        cfg.Email,
		password:     cfg.Password,
		frameName:    cfg.FrameName,
		categoryName: cfg.CategoryName,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
	}
}

// ID returns the provider id this adapter serves.
func (s *SkylightAdapter) ID() string { return s.provider.ID }

// Provider returns the provider descriptor.
func (s *SkylightAdapter) Provider() models.Provider { return s.provider }

// Close releases idle connections.
func (s *SkylightAdapter) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// skylightResource is one JSON:API resource object.
type skylightResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name      string `json:"name"`
		Label     string `json:"label"`
		Summary   string `json:"summary"`
		UID       string `json:"uid"`
		StartsAt  string `json:"starts_at"`
		EndsAt    string `json:"ends_at"`
		UpdatedAt string `json:"updated_at"`
		Token     string `json:"token"`
	} `json:"attributes"`
	Relationships struct {
		Categories struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"categories"`
	} `json:"relationships"`
}

type skylightListResponse struct {
	Data []skylightResource `json:"data"`
}

type skylightSingleResponse struct {
	Data skylightResource `json:"data"`
}

// ListEvents fetches the frame's calendar events in [since, until) and
// filters them to the configured category.
func (s *SkylightAdapter) ListEvents(ctx context.Context, since, until time.Time, limit int) ([]models.ProviderEventRecord, error) {
	frameID, categoryID, err := s.ensureFrame(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/api/frames/%s/calendar_events?date_min=%s&date_max=%s&include=categories",
		url.PathEscape(frameID),
		url.QueryEscape(since.UTC().Format(time.RFC3339)),
		url.QueryEscape(until.UTC().Format(time.RFC3339)))

	var list skylightListResponse
	if err := s.doJSON(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, fmt.Errorf("skylight event listing failed: %w", err)
	}

	records := make([]models.ProviderEventRecord, 0, len(list.Data))
	for _, ev := range list.Data {
		if categoryID != "" && !hasCategory(ev, categoryID) {
			continue
		}
		records = append(records, s.toRecord(ev))
		if limit > 0 && len(records) >= limit {
			logging.Warn().
				Str("provider", s.provider.ID).
				Int("limit", limit).
				Msg("Skylight fetch truncated at record limit")
			break
		}
	}
	return records, nil
}

// LinkEvent tags the event's uid with the canonical id.
func (s *SkylightAdapter) LinkEvent(ctx context.Context, providerEventID, canonicalID string) error {
	return s.patchEvent(ctx, providerEventID, map[string]any{
		"uid": orbitUIDPrefix + canonicalID,
	})
}

// UnlinkEvent clears the canonical uid tag.
func (s *SkylightAdapter) UnlinkEvent(ctx context.Context, providerEventID string) error {
	return s.patchEvent(ctx, providerEventID, map[string]any{
		"uid": "",
	})
}

// ConfirmEvent verifies the event still exists on the frame.
func (s *SkylightAdapter) ConfirmEvent(ctx context.Context, providerEventID string) error {
	frameID, _, err := s.ensureFrame(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/api/frames/%s/calendar_events/%s",
		url.PathEscape(frameID), url.PathEscape(providerEventID))

	var single skylightSingleResponse
	return s.doJSON(ctx, http.MethodGet, endpoint, nil, &single)
}

// RecreateEvent creates a new event carrying the canonical uid, using
// the reference record for title and times.
func (s *SkylightAdapter) RecreateEvent(ctx context.Context, canonicalID string, event models.ProviderEventRecord) error {
	frameID, categoryID, err := s.ensureFrame(ctx)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"summary":   event.Title,
		"uid":       orbitUIDPrefix + canonicalID,
		"starts_at": event.StartAt,
		"ends_at":   event.EndAt,
	}
	if categoryID != "" {
		payload["category_ids"] = []string{categoryID}
	}

	endpoint := fmt.Sprintf("/api/frames/%s/calendar_events", url.PathEscape(frameID))
	var created skylightSingleResponse
	if err := s.doJSON(ctx, http.MethodPost, endpoint, payload, &created); err != nil {
		return fmt.Errorf("skylight event create failed: %w", err)
	}

	logging.Info().
		Str("provider", s.provider.ID).
		Str("event_id", created.Data.ID).
		Str("title", event.Title).
		Msg("Skylight event recreated")
	return nil
}

func (s *SkylightAdapter) patchEvent(ctx context.Context, eventID string, attrs map[string]any) error {
	frameID, _, err := s.ensureFrame(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/api/frames/%s/calendar_events/%s",
		url.PathEscape(frameID), url.PathEscape(eventID))

	if err := s.doJSON(ctx, http.MethodPatch, endpoint, attrs, nil); err != nil {
		return fmt.Errorf("skylight event update failed: %w", err)
	}
	return nil
}

// toRecord converts a Skylight event resource into an observation.
func (s *SkylightAdapter) toRecord(ev skylightResource) models.ProviderEventRecord {
	canonicalID := ""
	if strings.HasPrefix(ev.Attributes.UID, orbitUIDPrefix) {
		canonicalID = strings.TrimPrefix(ev.Attributes.UID, orbitUIDPrefix)
	}
	return models.ProviderEventRecord{
		ProviderID:      s.provider.ID,
		ProviderEventID: ev.ID,
		CanonicalID:     canonicalID,
		Title:           ev.Attributes.Summary,
		StartAt:         ev.Attributes.StartsAt,
		EndAt:           ev.Attributes.EndsAt,
		LastUpdatedAt:   ev.Attributes.UpdatedAt,
	}
}

func hasCategory(ev skylightResource, categoryID string) bool {
	for _, c := range ev.Relationships.Categories.Data {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}

// ensureFrame resolves the configured frame and category ids once and
// caches them for the adapter lifetime.
func (s *SkylightAdapter) ensureFrame(ctx context.Context) (frameID, categoryID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameID != "" {
		return s.frameID, s.categoryID, nil
	}

	var frames skylightListResponse
	if err := s.doJSONLocked(ctx, http.MethodGet, "/api/frames", nil, &frames); err != nil {
		return "", "", fmt.Errorf("skylight frame listing failed: %w", err)
	}

	available := make([]string, 0, len(frames.Data))
	for _, f := range frames.Data {
		name := f.Attributes.Name
		available = append(available, name)
		if s.frameName == "" || strings.EqualFold(name, s.frameName) {
			s.frameID = f.ID
			break
		}
	}
	if s.frameID == "" {
		return "", "", fmt.Errorf("skylight frame %q not found (available: %s)", s.frameName, strings.Join(available, ", "))
	}

	if s.categoryName != "" {
		endpoint := fmt.Sprintf("/api/frames/%s/categories", url.PathEscape(s.frameID))
		var cats skylightListResponse
		if err := s.doJSONLocked(ctx, http.MethodGet, endpoint, nil, &cats); err != nil {
			return "", "", fmt.Errorf("skylight category listing failed: %w", err)
		}
		for _, c := range cats.Data {
			label := c.Attributes.Label
			if label == "" {
				label = c.Attributes.Name
			}
			if strings.EqualFold(label, s.categoryName) {
				s.categoryID = c.ID
				break
			}
		}
		if s.categoryID == "" {
			logging.Warn().
				Str("provider", s.provider.ID).
				Str("category", s.categoryName).
				Msg("Skylight category not found, events will not be filtered")
		}
	}

	logging.Info().
		Str("provider", s.provider.ID).
		Str("frame_id", s.frameID).
		Str("category_id", s.categoryID).
		Msg("Skylight frame discovered")
	return s.frameID, s.categoryID, nil
}

// ensureAuthenticated logs in when the session is missing or stale.
// Caller must hold s.mu.
func (s *SkylightAdapter) ensureAuthenticated(ctx context.Context) error {
	if s.authHeader != "" && time.Since(s.lastLogin) < skylightSessionTTL {
		return nil
	}

	payload := map[string]any{
		"email":    s.email,
		"password": s.password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode skylight login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create skylight login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("skylight login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if readErr != nil {
			return fmt.Errorf("skylight login returned status %d (failed to read body)", resp.StatusCode)
		}
		return fmt.Errorf("skylight login returned status %d: %s", resp.StatusCode, string(raw))
	}

	var session skylightSingleResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("failed to decode skylight session: %w", err)
	}
	if session.Data.ID == "" || session.Data.Attributes.Token == "" {
		return fmt.Errorf("skylight session response missing id or token")
	}

	s.authHeader = basicAuth(session.Data.ID, session.Data.Attributes.Token)
	s.lastLogin = time.Now()

	logging.Info().
		Str("provider", s.provider.ID).
		Str("session_id", session.Data.ID).
		Msg("Skylight login successful")
	return nil
}

// doJSON performs one authenticated JSON request. It takes s.mu only for
// the authentication check.
func (s *SkylightAdapter) doJSON(ctx context.Context, method, endpoint string, payload, out any) error {
	s.mu.Lock()
	err := s.ensureAuthenticated(ctx)
	authHeader := s.authHeader
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.request(ctx, method, endpoint, authHeader, payload, out)
}

// doJSONLocked is doJSON for callers already holding s.mu.
func (s *SkylightAdapter) doJSONLocked(ctx context.Context, method, endpoint string, payload, out any) error {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return err
	}
	return s.request(ctx, method, endpoint, s.authHeader, payload, out)
}

func (s *SkylightAdapter) request(ctx context.Context, method, endpoint, authHeader string, payload, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode skylight request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create skylight request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("skylight request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("skylight %s %s: %w", method, endpoint, ErrEventNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if readErr != nil {
			return fmt.Errorf("skylight %s %s returned status %d (failed to read body)", method, endpoint, resp.StatusCode)
		}
		return fmt.Errorf("skylight %s %s returned status %d: %s", method, endpoint, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode skylight response: %w", err)
	}
	return nil
}

func basicAuth(sessionID, token string) string {
	cred := sessionID + ":" + token
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
}
