// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

import "time"

// OperationStatus is the lifecycle status of an operation record.
type OperationStatus string

const (
	OperationQueued    OperationStatus = "queued"
	OperationRunning   OperationStatus = "running"
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

// Operation is the audit record written for every corrective action. The
// identifier is returned to the caller so a slow action can be correlated
// later; the record itself is the only artifact Orbit persists.
type Operation struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Status       OperationStatus `json:"status"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`

	Payload map[string]any `json:"payload,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
