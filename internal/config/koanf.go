// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/orbit/config.yaml",
	"/etc/orbit/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all defaults applied.
// Defaults load first, then config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8420,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Flows: FlowsConfig{
			Timeout: 15 * time.Second,
		},
		Reconcile: ReconcileConfig{
			RefreshInterval: 5 * time.Minute,
			PastWindow:      "7d",
			FutureWindow:    "0d",
			FetchLimit:      500,
		},
		Operations: OperationsConfig{
			Path:      "/data/orbit/operations",
			Retention: 30 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "",
			AdminPassword:   "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any scalar setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// ORBIT_JWT_SECRET -> security.jwt_secret, ORBIT_HTTP_PORT -> server.port
	envProvider := env.Provider("ORBIT_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		// Already a slice (from the YAML file).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps ORBIT_-prefixed environment variable names to
// koanf config paths.
//
// Examples:
//   - ORBIT_HTTP_PORT -> server.port
//   - ORBIT_JWT_SECRET -> security.jwt_secret
//   - ORBIT_REFRESH_INTERVAL -> reconcile.refresh_interval
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "ORBIT_"))

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Flow history source
		"flows_url":     "flows.url",
		"flows_token":   "flows.token",
		"flows_sync_id": "flows.sync_id",
		"flows_timeout": "flows.timeout",

		// Reconciliation
		"refresh_interval": "reconcile.refresh_interval",
		"past_window":      "reconcile.past_window",
		"future_window":    "reconcile.future_window",
		"fetch_limit":      "reconcile.fetch_limit",

		// Operations store
		"operations_path":      "operations.path",
		"operations_retention": "operations.retention",

		// Security
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unknown variables are dropped rather than guessed at.
	return ""
}
