// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched in order of
// priority; the first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchdeck/config.yaml",
	"/etc/watchdeck/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from three layered sources:
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The result is validated before it is
// returned; a Config that Load returns without error is safe to run with.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct.
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file.
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority).
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// Comma-separated env values become slices for known slice fields.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
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

// sliceConfigPaths lists the config paths parsed as comma-separated slices
// when they arrive through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults): nothing to do.
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
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so random environment
// variables never pollute the config.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		// Backend connection
		"backend_url":     "backend.url",
		"backend_ws_path": "backend.websocket_path",
		"backend_timeout": "backend.timeout",

		// Headless login bootstrap
		"watchdeck_username":    "credentials.username",
		"watchdeck_password":    "credentials.password",
		"watchdeck_remember_me": "credentials.remember_me",

		// Token store
		"store_backend": "store.backend",
		"store_path":    "store.path",

		// Metadata cache
		"cache_capacity":         "cache.capacity",
		"cache_janitor_interval": "cache.janitor_interval",
		"cache_persistent":       "cache.persistent",
		"cache_trending_ttl":     "cache.trending_ttl",
		"cache_search_ttl":       "cache.search_ttl",
		"cache_details_ttl":      "cache.details_ttl",
		"cache_availability_ttl": "cache.availability_ttl",

		// Realtime channel
		"channel_reconnect_delay":   "channel.reconnect_delay",
		"channel_ping_interval":     "channel.ping_interval",
		"channel_handshake_timeout": "channel.handshake_timeout",

		// Catalog gateway
		"catalog_rate_limit":      "catalog.rate_limit",
		"catalog_rate_burst":      "catalog.rate_burst",
		"catalog_breaker_enabled": "catalog.breaker_enabled",

		// Local server
		"http_host":               "server.host",
		"http_port":               "server.port",
		"http_timeout":            "server.timeout",
		"cors_origins":            "server.cors_origins",
		"rate_limit_requests":     "server.rate_limit_reqs",
		"rate_limit_window":       "server.rate_limit_window",
		"disable_rate_limit":      "server.rate_limit_disabled",
		"api_token":               "server.api_token",
		"dashboard_password_hash": "server.password_hash",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller is
// responsible for mutex protection when replacing configuration on reload.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
