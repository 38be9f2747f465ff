// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateProviders(); err != nil {
		return err
	}

	if err := c.validateFlows(); err != nil {
		return err
	}

	if err := c.validateReconcile(); err != nil {
		return err
	}

	if err := c.validateOperations(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateAPI()
}

// validateServer validates HTTP server settings
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("ORBIT_HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second || c.Server.Timeout > 5*time.Minute {
		return fmt.Errorf("ORBIT_HTTP_TIMEOUT must be between 1s and 5m")
	}
	return nil
}

// validateProviders validates each configured provider. Disabled providers
// are skipped entirely so a half-configured provider can stay in the file.
func (c *Config) validateProviders() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if !p.Enabled {
			continue
		}
		if p.ID == "" {
			return fmt.Errorf("providers[%d].id is required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = struct{}{}

		if err := c.validateProvider(p); err != nil {
			return err
		}
	}
	return nil
}

// validateProvider validates one enabled provider by kind
func (c *Config) validateProvider(p *ProviderConfig) error {
	switch p.Kind {
	case "caldav":
		return validateCalDAVProvider(p)
	case "skylight":
		return validateSkylightProvider(p)
	default:
		return fmt.Errorf("provider %q has unknown kind %q (expected caldav or skylight)", p.ID, p.Kind)
	}
}

// validateCalDAVProvider validates CalDAV credentials
func validateCalDAVProvider(p *ProviderConfig) error {
	if p.URL != "" {
		if err := validateHTTPURL(p.URL, fmt.Sprintf("provider %q url", p.ID)); err != nil {
			return err
		}
	}
	if p.Username == "" {
		return fmt.Errorf("provider %q requires username", p.ID)
	}
	if p.AppPassword == "" {
		return fmt.Errorf("provider %q requires app_password", p.ID)
	}
	if p.CalendarName == "" {
		return fmt.Errorf("provider %q requires calendar_name", p.ID)
	}
	return nil
}

// validateSkylightProvider validates Skylight credentials
func validateSkylightProvider(p *ProviderConfig) error {
	if p.URL == "" {
		return fmt.Errorf("provider %q requires url", p.ID)
	}
	if err := validateHTTPURL(p.URL, fmt.Sprintf("provider %q url", p.ID)); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("provider %q requires email", p.ID)
	}
	if p.Password == "" {
		return fmt.Errorf("provider %q requires password", p.ID)
	}
	if p.FrameName == "" {
		return fmt.Errorf("provider %q requires frame_name", p.ID)
	}
	return nil
}

// validateFlows validates the sync-engine history source settings
func (c *Config) validateFlows() error {
	if c.Flows.URL == "" {
		// Without a flow source every group is reported as unmapped,
		// which is still a valid (degraded) mode.
		return nil
	}
	if err := validateHTTPURL(c.Flows.URL, "ORBIT_FLOWS_URL"); err != nil {
		return err
	}
	if c.Flows.Timeout < time.Second || c.Flows.Timeout > 5*time.Minute {
		return fmt.Errorf("ORBIT_FLOWS_TIMEOUT must be between 1s and 5m")
	}
	return nil
}

// validWindowTokens are the accepted window preset tokens. Kept in sync
// with the reconcile window presets.
var validWindowTokens = map[string]struct{}{
	"0d":  {},
	"24h": {},
	"7d":  {},
	"14d": {},
	"30d": {},
}

// validateReconcile validates refresh loop settings
func (c *Config) validateReconcile() error {
	if c.Reconcile.RefreshInterval < 10*time.Second || c.Reconcile.RefreshInterval > 24*time.Hour {
		return fmt.Errorf("ORBIT_REFRESH_INTERVAL must be between 10s and 24h")
	}
	if _, ok := validWindowTokens[c.Reconcile.PastWindow]; !ok {
		return fmt.Errorf("ORBIT_PAST_WINDOW must be one of 0d, 24h, 7d, 14d, 30d")
	}
	if _, ok := validWindowTokens[c.Reconcile.FutureWindow]; !ok {
		return fmt.Errorf("ORBIT_FUTURE_WINDOW must be one of 0d, 24h, 7d, 14d, 30d")
	}
	if c.Reconcile.FetchLimit < 1 || c.Reconcile.FetchLimit > 10000 {
		return fmt.Errorf("ORBIT_FETCH_LIMIT must be between 1 and 10000")
	}
	return nil
}

// validateOperations validates the operation store settings
func (c *Config) validateOperations() error {
	if c.Operations.Path == "" {
		return fmt.Errorf("ORBIT_OPERATIONS_PATH is required")
	}
	if c.Operations.Retention < time.Hour {
		return fmt.Errorf("ORBIT_OPERATIONS_RETENTION must be at least 1h")
	}
	return nil
}

// validateSecurity validates authentication and rate limit settings
func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("ORBIT_JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("ORBIT_JWT_SECRET must be at least 32 characters")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("ORBIT_ADMIN_USERNAME is required")
	}
	if c.Security.AdminPassword == "" {
		return fmt.Errorf("ORBIT_ADMIN_PASSWORD is required")
	}
	if len(c.Security.AdminPassword) < 12 {
		return fmt.Errorf("ORBIT_ADMIN_PASSWORD must be at least 12 characters")
	}
	if c.Security.SessionTimeout < time.Minute || c.Security.SessionTimeout > 7*24*time.Hour {
		return fmt.Errorf("ORBIT_SESSION_TIMEOUT must be between 1m and 168h")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("ORBIT_RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("ORBIT_RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	return nil
}

// validateAPI validates pagination limits
func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("ORBIT_API_DEFAULT_PAGE_SIZE must be between 1 and the max page size")
	}
	if c.API.MaxPageSize < 1 || c.API.MaxPageSize > 1000 {
		return fmt.Errorf("ORBIT_API_MAX_PAGE_SIZE must be between 1 and 1000")
	}
	return nil
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS
// services: scheme http or https and a host present.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}
