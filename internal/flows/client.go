// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package flows fetches canonical flow records from the sync engine's
// run-history API. The sync engine is a separate service; Orbit only
// reads what it already recorded.
package flows

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/models"
)

// Source lists the flow records for a sync scope. Satisfied by Client;
// the refresher takes the interface so tests can script flow data.
type Source interface {
	List(ctx context.Context, syncID string) ([]models.FlowRecord, error)
}

// Client is the HTTP client for the sync engine's run-history endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Source = (*Client)(nil)

// NewClient creates a run-history client from the flows config. Returns
// nil when no URL is configured; the refresher treats a nil source as
// "no flow data", which degrades every group to unmapped rather than
// failing the snapshot.
func NewClient(cfg config.FlowsConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// flowWire is the run-history record as the sync engine serializes it.
type flowWire struct {
	CanonicalID      string `json:"canonical_id"`
	Title            string `json:"title"`
	SourceProviderID string `json:"source_provider_id"`
	TargetProviderID string `json:"target_provider_id"`
	OccurredAt       string `json:"occurred_at"`
}

type flowListResponse struct {
	Flows []flowWire `json:"flows"`
}

// List fetches the flow records for one sync scope. Records without a
// canonical id are skipped with a warning; they cannot participate in
// direction matching.
func (c *Client) List(ctx context.Context, syncID string) ([]models.FlowRecord, error) {
	endpoint := c.baseURL + "/api/v1/syncs/" + url.PathEscape(syncID) + "/flows"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow history request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FlowFetchErrors.Inc()
		return nil, fmt.Errorf("flow history request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.FlowFetchErrors.Inc()
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if readErr != nil {
			return nil, fmt.Errorf("flow history returned status %d (failed to read body)", resp.StatusCode)
		}
		return nil, fmt.Errorf("flow history returned status %d: %s", resp.StatusCode, string(body))
	}

	var wire flowListResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.FlowFetchErrors.Inc()
		return nil, fmt.Errorf("failed to decode flow history: %w", err)
	}

	records := make([]models.FlowRecord, 0, len(wire.Flows))
	skipped := 0
	for _, f := range wire.Flows {
		if f.CanonicalID == "" {
			skipped++
			continue
		}
		records = append(records, models.FlowRecord{
			CanonicalID:      f.CanonicalID,
			Title:            f.Title,
			SourceProviderID: f.SourceProviderID,
			TargetProviderID: f.TargetProviderID,
			OccurredAt:       f.OccurredAt,
		})
	}
	if skipped > 0 {
		logging.Warn().
			Str("sync_id", syncID).
			Int("skipped", skipped).
			Msg("Flow records without canonical id skipped")
	}

	metrics.FlowRecordsFetched.Set(float64(len(records)))
	return records, nil
}
