// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package config provides centralized configuration management for Watchdeck.

# Configuration Sources

Configuration is loaded with Koanf v2 from three layered sources, later
layers overriding earlier ones:

 1. Built-in defaults for every setting
 2. An optional YAML config file (CONFIG_PATH, config.yaml, or
    /etc/watchdeck/config.yaml)
 3. Environment variables

# Configuration Structure

The Config struct groups settings by component:

  - BackendConfig: the upstream backend (base URL, websocket path, timeout)
  - CredentialsConfig: optional headless login bootstrap
  - StoreConfig: token persistence (badger or memory)
  - CacheConfig: metadata cache capacity, janitor cadence, and TTL classes
  - ChannelConfig: realtime channel timing (fixed reconnect delay, pings)
  - CatalogConfig: catalog gateway rate limit and circuit breaker
  - ServerConfig: local HTTP surface (bind, CORS, rate limits, local auth)
  - LoggingConfig: level, format, caller

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal("Failed to load config:", err)
	}
	backend := auth.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)

Load validates the result; a Config returned without error is safe to run
with. Each section's field comments document its environment variables.
*/
package config
