// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateChannel(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if err := validateHTTPURL(c.Backend.URL, "BACKEND_URL"); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Backend.WebSocketPath, "/") {
		return fmt.Errorf("BACKEND_WS_PATH must start with /, got: %s", c.Backend.WebSocketPath)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCredentials() error {
	// Both or neither: a username without a password cannot log in.
	if (c.Credentials.Username == "") != (c.Credentials.Password == "") {
		return fmt.Errorf("WATCHDECK_USERNAME and WATCHDECK_PASSWORD must be set together")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory":
		return nil
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or badger, got: %s", c.Store.Backend)
	}
}

func (c *Config) validateCache() error {
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("CACHE_CAPACITY must not be negative")
	}
	if c.Cache.JanitorInterval <= 0 {
		return fmt.Errorf("CACHE_JANITOR_INTERVAL must be positive")
	}
	if c.Cache.TrendingTTL <= 0 {
		return fmt.Errorf("CACHE_TRENDING_TTL must be positive")
	}
	if c.Cache.SearchTTL <= 0 {
		return fmt.Errorf("CACHE_SEARCH_TTL must be positive")
	}
	if c.Cache.DetailsTTL <= 0 {
		return fmt.Errorf("CACHE_DETAILS_TTL must be positive")
	}
	if c.Cache.AvailabilityTTL <= 0 {
		return fmt.Errorf("CACHE_AVAILABILITY_TTL must be positive")
	}
	if c.Cache.Persistent && c.Store.Backend != "badger" {
		return fmt.Errorf("CACHE_PERSISTENT requires STORE_BACKEND=badger")
	}
	return nil
}

func (c *Config) validateChannel() error {
	if c.Channel.ReconnectDelay <= 0 {
		return fmt.Errorf("CHANNEL_RECONNECT_DELAY must be positive")
	}
	if c.Channel.PingInterval <= 0 {
		return fmt.Errorf("CHANNEL_PING_INTERVAL must be positive")
	}
	if c.Channel.HandshakeTimeout <= 0 {
		return fmt.Errorf("CHANNEL_HANDSHAKE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.RateLimit <= 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT must be positive")
	}
	if c.Catalog.RateBurst < 1 {
		return fmt.Errorf("CATALOG_RATE_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	if c.Server.PasswordHash != "" && !strings.HasPrefix(c.Server.PasswordHash, "$2") {
		return fmt.Errorf("DASHBOARD_PASSWORD_HASH must be a bcrypt hash")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, got: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is a usable http/https base URL:
// scheme, host present, no path beyond a trailing slash, no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsed.Path)
	}

	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsed.RawQuery)
	}

	return nil
}
