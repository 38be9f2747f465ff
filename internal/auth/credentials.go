// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/andygivens/orbit/internal/config"
)

// ErrInvalidCredentials is returned for any username/password mismatch.
// The error is deliberately uniform so responses do not reveal whether
// the username exists.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialChecker validates the single configured admin login.
// Comparisons run over SHA-256 digests so they are constant time
// regardless of input length.
type CredentialChecker struct {
	usernameHash [32]byte
	passwordHash [32]byte
}

// NewCredentialChecker builds a checker from the security configuration.
func NewCredentialChecker(cfg *config.SecurityConfig) *CredentialChecker {
	return &CredentialChecker{
		usernameHash: sha256.Sum256([]byte(cfg.AdminUsername)),
		passwordHash: sha256.Sum256([]byte(cfg.AdminPassword)),
	}
}

// Check validates a login attempt. Both fields are always compared so
// timing does not distinguish a wrong username from a wrong password.
func (c *CredentialChecker) Check(username, password string) error {
	userHash := sha256.Sum256([]byte(username))
	passHash := sha256.Sum256([]byte(password))

	userOK := subtle.ConstantTimeCompare(userHash[:], c.usernameHash[:])
	passOK := subtle.ConstantTimeCompare(passHash[:], c.passwordHash[:])
	if userOK&passOK != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
