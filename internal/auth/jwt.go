// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package auth provides JWT session tokens and the request middleware
// that enforces them on the troubleshooting API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/andygivens/orbit/internal/config"
)

// Claims are the JWT claims carried by an Orbit session token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates session tokens with HMAC-SHA256.
// The secret is held as []byte and is never logged.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a token manager from the security configuration.
// ORBIT_JWT_SECRET must be set; length is enforced by config validation.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ORBIT_JWT_SECRET is required but was empty")
	}

	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}

	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: timeout,
	}, nil
}

// GenerateToken creates a signed session token for an authenticated user.
// The token expires after the configured session timeout.
func (m *JWTManager) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, and time claims, and
// returns the embedded claims. Only HMAC signing methods are accepted,
// which rules out algorithm-confusion tokens.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// SessionTimeout reports the configured token lifetime, exposed so the
// login response can tell clients when to re-authenticate.
func (m *JWTManager) SessionTimeout() time.Duration {
	return m.timeout
}
