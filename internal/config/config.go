// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package config

import "time"

// Config holds all daemon configuration loaded from defaults, an optional
// YAML file, and environment variables (highest priority).
//
// Thread Safety: Config is immutable after Load() and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	Backend     BackendConfig     `koanf:"backend"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Store       StoreConfig       `koanf:"store"`
	Cache       CacheConfig       `koanf:"cache"`
	Channel     ChannelConfig     `koanf:"channel"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// BackendConfig holds the connection settings for the media-management
// backend that owns authentication, the catalog proxy, and the event stream.
//
// Environment Variables:
//   - BACKEND_URL: Base URL of the backend (required, e.g. http://localhost:5000)
//   - BACKEND_WS_PATH: Path of the websocket event stream (default: /api/ws)
//   - BACKEND_TIMEOUT: Per-request timeout for REST calls (default: 30s)
type BackendConfig struct {
	URL           string        `koanf:"url"`
	WebSocketPath string        `koanf:"websocket_path"`
	Timeout       time.Duration `koanf:"timeout"`
}

// CredentialsConfig optionally bootstraps a headless login: when Init
// resolves unauthenticated and a username is configured, the session runner
// performs one login with these credentials. A login failure is logged and
// leaves the daemon running; the operator can log in through the local API.
//
// Environment Variables:
//   - WATCHDECK_USERNAME: Backend username for headless login
//   - WATCHDECK_PASSWORD: Backend password for headless login
//   - WATCHDECK_REMEMBER_ME: Request the extended token lifetime (default: true)
type CredentialsConfig struct {
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	RememberMe bool   `koanf:"remember_me"`
}

// StoreConfig selects where the credential pair is persisted.
//
// Environment Variables:
//   - STORE_BACKEND: "badger" (durable, default) or "memory" (re-login after restart)
//   - STORE_PATH: BadgerDB directory (default: /data/watchdeck)
type StoreConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// CacheConfig tunes the catalog metadata cache. The TTL classes match how
// fast each kind of metadata goes stale; callers pick the class, the cache
// itself carries no default TTL.
//
// Environment Variables:
//   - CACHE_CAPACITY: Max in-memory entries, 0 = unbounded (default: 4096)
//   - CACHE_JANITOR_INTERVAL: Expired-entry sweep cadence (default: 10m)
//   - CACHE_PERSISTENT: Also persist entries in BadgerDB so they survive restarts (default: false)
//   - CACHE_TRENDING_TTL: Trending/popular lists (default: 6h)
//   - CACHE_SEARCH_TTL: Search results (default: 2h)
//   - CACHE_DETAILS_TTL: Per-title details (default: 24h)
//   - CACHE_AVAILABILITY_TTL: Streaming availability lookups (default: 12h)
type CacheConfig struct {
	Capacity        int           `koanf:"capacity"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
	Persistent      bool          `koanf:"persistent"`
	TrendingTTL     time.Duration `koanf:"trending_ttl"`
	SearchTTL       time.Duration `koanf:"search_ttl"`
	DetailsTTL      time.Duration `koanf:"details_ttl"`
	AvailabilityTTL time.Duration `koanf:"availability_ttl"`
}

// ChannelConfig tunes the realtime channel. The reconnect delay is fixed:
// there is no backoff growth and no retry cap.
//
// Environment Variables:
//   - CHANNEL_RECONNECT_DELAY: Fixed pause between drop and retry (default: 5s)
//   - CHANNEL_PING_INTERVAL: Keepalive cadence (default: 30s)
//   - CHANNEL_HANDSHAKE_TIMEOUT: Bound on a single dial (default: 10s)
type ChannelConfig struct {
	ReconnectDelay   time.Duration `koanf:"reconnect_delay"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// CatalogConfig tunes the catalog gateway that fronts the backend's
// metadata proxy.
//
// Environment Variables:
//   - CATALOG_RATE_LIMIT: Client-side requests per second (default: 5)
//   - CATALOG_RATE_BURST: Limiter burst size (default: 10)
//   - CATALOG_BREAKER_ENABLED: Wrap catalog calls in a circuit breaker (default: true)
type CatalogConfig struct {
	RateLimit      float64 `koanf:"rate_limit"`
	RateBurst      int     `koanf:"rate_burst"`
	BreakerEnabled bool    `koanf:"breaker_enabled"`
}

// ServerConfig holds the local HTTP/WebSocket surface settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8480)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS: Default requests per window (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: Turn off local rate limiting (default: false)
//   - API_TOKEN: Static bearer token required on /api/v1 routes (empty = open)
//   - DASHBOARD_PASSWORD_HASH: bcrypt hash enabling HTTP basic auth (empty = open)
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	APIToken          string        `koanf:"api_token"`
	PasswordHash      string        `koanf:"password_hash"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Defaults returns a Config carrying only the built-in defaults, skipping
// file and environment loading. Useful as a starting point in tests.
func Defaults() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:           "",
			WebSocketPath: "/api/ws",
			Timeout:       30 * time.Second,
		},
		Credentials: CredentialsConfig{
			Username:   "",
			Password:   "",
			RememberMe: true, // A daemon wants the 90 day lifetime.
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/watchdeck",
		},
		Cache: CacheConfig{
			Capacity:        4096,
			JanitorInterval: 10 * time.Minute,
			Persistent:      false,
			TrendingTTL:     6 * time.Hour,
			SearchTTL:       2 * time.Hour,
			DetailsTTL:      24 * time.Hour,
			AvailabilityTTL: 12 * time.Hour,
		},
		Channel: ChannelConfig{
			ReconnectDelay:   5 * time.Second,
			PingInterval:     30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			RateLimit:      5,
			RateBurst:      10,
			BreakerEnabled: true,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8480,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			APIToken:          "",
			PasswordHash:      "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
