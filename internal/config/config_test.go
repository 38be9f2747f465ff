// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package config

import (
	"strings"
	"testing"
	"time"
)

// validTestConfig returns a config that passes validation. Tests mutate
// one field at a time to exercise individual rules.
func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	cfg.Security.AdminUsername = "admin"
	cfg.Security.AdminPassword = "correct-horse-battery"
	cfg.Providers = []ProviderConfig{
		{
			ID:           "apple",
			Name:         "Apple iCloud",
			Kind:         "caldav",
			Enabled:      true,
			URL:          "https://caldav.icloud.com",
			Username:     "user@example.com",
			AppPassword:  "abcd-efgh-ijkl-mnop",
			CalendarName: "Family",
		},
		{
			ID:           "skylight",
			Name:         "Skylight Frame",
			Kind:         "skylight",
			Enabled:      true,
			URL:          "https://app.ourskylight.com",
			Email:        "user@example.com",
			Password:     "hunter2hunter2",
			FrameName:    "Kitchen",
			CategoryName: "Family",
		},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "ORBIT_HTTP_PORT",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "ORBIT_JWT_SECRET",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "ORBIT_JWT_SECRET",
		},
		{
			name:    "short admin password",
			mutate:  func(c *Config) { c.Security.AdminPassword = "short" },
			wantErr: "ORBIT_ADMIN_PASSWORD",
		},
		{
			name:    "unknown provider kind",
			mutate:  func(c *Config) { c.Providers[0].Kind = "google" },
			wantErr: "unknown kind",
		},
		{
			name: "duplicate provider id",
			mutate: func(c *Config) {
				c.Providers[1] = c.Providers[0]
			},
			wantErr: "duplicate provider id",
		},
		{
			name:    "caldav missing app password",
			mutate:  func(c *Config) { c.Providers[0].AppPassword = "" },
			wantErr: "app_password",
		},
		{
			name:    "skylight missing frame name",
			mutate:  func(c *Config) { c.Providers[1].FrameName = "" },
			wantErr: "frame_name",
		},
		{
			name: "disabled provider skips validation",
			mutate: func(c *Config) {
				c.Providers[0].AppPassword = ""
				c.Providers[0].Enabled = false
			},
		},
		{
			name:    "bad window token",
			mutate:  func(c *Config) { c.Reconcile.PastWindow = "90d" },
			wantErr: "ORBIT_PAST_WINDOW",
		},
		{
			name:    "refresh interval too small",
			mutate:  func(c *Config) { c.Reconcile.RefreshInterval = time.Second },
			wantErr: "ORBIT_REFRESH_INTERVAL",
		},
		{
			name:    "flows url not http",
			mutate:  func(c *Config) { c.Flows.URL = "ftp://sync.local" },
			wantErr: "ORBIT_FLOWS_URL",
		},
		{
			name:    "default page size above max",
			mutate:  func(c *Config) { c.API.DefaultPageSize = 500 },
			wantErr: "ORBIT_API_DEFAULT_PAGE_SIZE",
		},
		{
			name:    "operations retention too small",
			mutate:  func(c *Config) { c.Operations.Retention = time.Minute },
			wantErr: "ORBIT_OPERATIONS_RETENTION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"ORBIT_HTTP_PORT", "server.port"},
		{"ORBIT_JWT_SECRET", "security.jwt_secret"},
		{"ORBIT_REFRESH_INTERVAL", "reconcile.refresh_interval"},
		{"ORBIT_FLOWS_URL", "flows.url"},
		{"ORBIT_LOG_LEVEL", "logging.level"},
		{"ORBIT_CORS_ORIGINS", "security.cors_origins"},
		{"ORBIT_UNKNOWN_SETTING", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORBIT_HTTP_PORT", "9000")
	t.Setenv("ORBIT_JWT_SECRET", strings.Repeat("k", 32))
	t.Setenv("ORBIT_ADMIN_USERNAME", "admin")
	t.Setenv("ORBIT_ADMIN_PASSWORD", "correct-horse-battery")
	t.Setenv("ORBIT_LOG_LEVEL", "debug")
	t.Setenv("ORBIT_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv(ConfigPathEnvVar, "/nonexistent/orbit.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}
	// Defaults survive where no override was set.
	if cfg.Reconcile.PastWindow != "7d" {
		t.Errorf("Reconcile.PastWindow = %q, want 7d", cfg.Reconcile.PastWindow)
	}
}

func TestEnabledProviders(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers = append(cfg.Providers, ProviderConfig{ID: "paused", Kind: "caldav"})

	enabled := cfg.EnabledProviders()
	if len(enabled) != 2 {
		t.Fatalf("EnabledProviders() returned %d providers, want 2", len(enabled))
	}
	for _, p := range enabled {
		if !p.Enabled {
			t.Errorf("EnabledProviders() returned disabled provider %q", p.ID)
		}
	}
}
