// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package config provides layered configuration for Orbit using Koanf v2.
//
// Precedence: environment variables > config file (YAML) > built-in
// defaults. Providers are list-valued and therefore configured through
// the YAML file only; all scalar settings can additionally be overridden
// through environment variables (see envTransformFunc).
package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Providers  []ProviderConfig `koanf:"providers"`
	Flows      FlowsConfig      `koanf:"flows"`
	Reconcile  ReconcileConfig  `koanf:"reconcile"`
	Operations OperationsConfig `koanf:"operations"`
	Security   SecurityConfig   `koanf:"security"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// ProviderConfig describes one calendar provider connection. Kind selects
// the adapter; the credential fields used depend on the kind:
//
//   - caldav: URL (default https://caldav.icloud.com), Username,
//     AppPassword, CalendarName
//   - skylight: URL, Email, Password, FrameName, CategoryName
type ProviderConfig struct {
	ID      string `koanf:"id"`
	Name    string `koanf:"name"`
	Kind    string `koanf:"kind"`
	Enabled bool   `koanf:"enabled"`

	URL string `koanf:"url"`

	// CalDAV credentials.
	Username     string `koanf:"username"`
	AppPassword  string `koanf:"app_password"`
	CalendarName string `koanf:"calendar_name"`

	// Skylight credentials.
	Email        string `koanf:"email"`
	Password     string `koanf:"password"`
	FrameName    string `koanf:"frame_name"`
	CategoryName string `koanf:"category_name"`

	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps outbound calls to the provider API.
	// Zero disables rate limiting for the provider.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// FlowsConfig points at the sync engine's run-history API, the source of
// canonical flow records. The sync engine itself is an external service;
// Orbit only reads its history.
type FlowsConfig struct {
	URL     string        `koanf:"url"`
	Token   string        `koanf:"token"`
	SyncID  string        `koanf:"sync_id"`
	Timeout time.Duration `koanf:"timeout"`
}

// ReconcileConfig controls the snapshot refresh loop.
type ReconcileConfig struct {
	// RefreshInterval is the cadence of the background refresh ticker.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// PastWindow / FutureWindow are default window preset tokens
	// (0d, 24h, 7d, 14d, 30d).
	PastWindow   string `koanf:"past_window"`
	FutureWindow string `koanf:"future_window"`

	// FetchLimit caps the records requested per provider per fetch.
	FetchLimit int `koanf:"fetch_limit"`
}

// OperationsConfig controls the embedded operation-record store.
type OperationsConfig struct {
	Path      string        `koanf:"path"`
	Retention time.Duration `koanf:"retention"`
}

// SecurityConfig holds authentication and rate limit settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// APIConfig holds pagination limits for list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EnabledProviders returns the providers with Enabled set.
func (c *Config) EnabledProviders() []ProviderConfig {
	enabled := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
