// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package models

import "fmt"

// ActionType identifies a corrective operation.
type ActionType string

const (
	ActionLink     ActionType = "link"
	ActionUnlink   ActionType = "unlink"
	ActionConfirm  ActionType = "confirm"
	ActionRecreate ActionType = "recreate"
)

// ActionKey is the composite identity of one corrective action: the action
// type plus its target. While a key has an operation in flight, a second
// request for the same key is a client-side no-op; different keys proceed
// independently.
type ActionKey struct {
	Type   ActionType `json:"type"`
	Target string     `json:"target"`
}

// NewActionKey builds an action key from an action type and the target's
// identifying parts.
func NewActionKey(t ActionType, parts ...string) ActionKey {
	target := ""
	for i, p := range parts {
		if i > 0 {
			target += ":"
		}
		target += p
	}
	return ActionKey{Type: t, Target: target}
}

// String renders the key in "type:target" form for logging and JSON maps.
func (k ActionKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.Target)
}

// ActionPhase is the lifecycle phase of an action key.
//
// The state machine per key is Idle -> Pending -> Idle; success and
// failure both return to Idle, failure additionally surfaces a message.
// There is no retrying phase; a retry is a new user-initiated invocation.
type ActionPhase string

const (
	ActionIdle    ActionPhase = "idle"
	ActionPending ActionPhase = "pending"
	ActionFailed  ActionPhase = "failed"
)

// ActionState is the tagged per-key state exposed to the presentation
// layer for disabling controls and surfacing failure messages.
type ActionState struct {
	Key     ActionKey   `json:"key"`
	Phase   ActionPhase `json:"phase"`
	Message string      `json:"message,omitempty"`
}
