// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package main is the entry point for the Watchdeck daemon.
//
// Watchdeck is a self-hosted dashboard companion for a personal media box.
// It keeps an authenticated session open against the media-management
// backend, holds a realtime event channel for download progress, and serves
// a local REST/WebSocket API with a cached catalog gateway for dashboard
// frontends.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Token store: BadgerDB for durable credentials, or in-memory (re-login after restart)
//  3. Session manager: restore-verify-refresh state machine owning the backend event channel
//  4. WebSocket hub: re-broadcasts session state and download progress to dashboard clients
//  5. Catalog gateway: rate-limited backend client with circuit breaker and TTL cache
//  6. HTTP server: local REST and WebSocket API
//  7. Supervisor tree: suture v4 with session, messaging, and API layers
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The only required setting is the backend:
//   - BACKEND_URL: Base URL of the media-management backend (e.g. http://localhost:5000)
//
// # Headless Mode
//
// With credentials configured, the daemon logs itself in whenever a startup
// restore resolves unauthenticated:
//   - WATCHDECK_USERNAME: Backend username
//   - WATCHDECK_PASSWORD: Backend password
//
// Without them the daemon starts unauthenticated and the operator logs in
// through POST /api/v1/session/login. Either way the token pair lands in the
// store, so a later restart restores the session without another password
// exchange.
//
// # Signal Handling
//
// The daemon handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections and drains in-flight requests (10s timeout)
//   - Closes dashboard WebSocket connections
//   - Stops the session runner; stored tokens survive for the next start
//   - Closes the BadgerDB store last
//
// # Example Usage
//
// Interactive login (credentials entered through the dashboard):
//
//	export BACKEND_URL=http://localhost:5000
//	./watchdeckd
//
// Headless login with a durable session:
//
//	export BACKEND_URL=http://localhost:5000
//	export WATCHDECK_USERNAME=admin
//	export WATCHDECK_PASSWORD=secure-password
//	export STORE_PATH=/data/watchdeck
//	./watchdeckd
//
// Locked-down local API:
//
//	export BACKEND_URL=http://localhost:5000
//	export API_TOKEN=$(openssl rand -hex 32)
//	./watchdeckd
//
// Docker:
//
//	docker run -d \
//	  -e BACKEND_URL=http://backend:5000 \
//	  -e WATCHDECK_USERNAME=admin \
//	  -e WATCHDECK_PASSWORD=secure-password \
//	  -v watchdeck-data:/data/watchdeck \
//	  -p 8480:8480 \
//	  ghcr.io/tomtom215/watchdeck
//
// # Port 8480
//
// The default port 8480 keeps the 8080 HTTP convention recognizable while
// staying clear of ports a media box typically has spoken for: 8080
// (qBittorrent), 8096 (Jellyfin), 8989 (Sonarr), 7878 (Radarr).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/tomtom215/watchdeck/internal/api"
	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/cache"
	"github.com/tomtom215/watchdeck/internal/catalog"
	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
	"github.com/tomtom215/watchdeck/internal/realtime"
	"github.com/tomtom215/watchdeck/internal/session"
	"github.com/tomtom215/watchdeck/internal/supervisor"
	"github.com/tomtom215/watchdeck/internal/supervisor/services"
	ws "github.com/tomtom215/watchdeck/internal/websocket"
)

// version is set at build time
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Watchdeck with supervisor tree")
	metrics.SetAppInfo(version, runtime.Version())

	// Log configuration status - show login mode based on configured credentials
	if cfg.Credentials.Username != "" {
		logging.Info().
			Str("backend_url", cfg.Backend.URL).
			Str("store_backend", cfg.Store.Backend).
			Bool("headless_login", true).
			Msg("Configuration loaded")
	} else {
		logging.Info().
			Str("backend_url", cfg.Backend.URL).
			Str("store_backend", cfg.Store.Backend).
			Bool("headless_login", false).
			Msg("Configuration loaded (interactive login)")
	}

	// Open BadgerDB when anything needs durable storage. The token store and
	// the persistent catalog cache share one database.
	var db *badger.DB
	if cfg.Store.Backend == "badger" {
		opts := badger.DefaultOptions(cfg.Store.Path)
		opts.Logger = nil // Suppress BadgerDB logs

		db, err = badger.Open(opts)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open badger store")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing badger store")
			}
		}()
		logging.Info().Str("path", cfg.Store.Path).Msg("Badger store opened")
	}

	// Token store: durable by default, memory when explicitly selected
	var tokenStore auth.TokenStore
	if db != nil {
		tokenStore = auth.NewBadgerTokenStore(db)
		logging.Info().Msg("Token store initialized (badger)")
	} else {
		tokenStore = auth.NewMemoryTokenStore()
		logging.Warn().Msg("Token store is in-memory (STORE_BACKEND=memory); a restart requires a fresh login")
	}

	// Auth backend client for login/verify/refresh/logout
	backendClient := auth.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	logging.Info().Str("url", cfg.Backend.URL).Msg("Auth backend client initialized")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Create WebSocket hub for dashboard updates (before the session manager)
	// The channel factory broadcasts download progress into it
	hub := ws.NewHub()

	wsURL, err := realtime.WebSocketURL(cfg.Backend.URL, cfg.Backend.WebSocketPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build event stream URL")
	}

	// Create session manager. The channel factory builds a fresh event
	// channel per authenticated session; BearerToken is read at every dial so
	// reconnects pick up rotated tokens.
	var mgr *session.Manager
	channelFactory := func() session.EventChannel {
		ch := realtime.New(realtime.Options{
			URL:              wsURL,
			BearerToken:      mgr.CurrentAccessToken,
			ReconnectDelay:   cfg.Channel.ReconnectDelay,
			PingInterval:     cfg.Channel.PingInterval,
			HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		})
		ch.SubscribeDownloadProgress(hub.BroadcastDownloadProgress)
		return ch
	}
	mgr = session.New(session.Options{
		Store:   tokenStore,
		Backend: backendClient,
		Channel: channelFactory,
	})
	logging.Info().Str("event_stream", wsURL).Msg("Session manager initialized")

	// Session state fanout: dashboard clients and the transition log
	mgr.OnChange(func(snap session.Snapshot) {
		username := ""
		if snap.User != nil {
			username = snap.User.Username
		}
		hub.BroadcastSessionState(snap.State.String(), username)
	})
	mgr.OnChange(func(snap session.Snapshot) {
		logging.Debug().Str("state", snap.State.String()).Msg("Session state transition")
	})

	// Catalog gateway: rate-limited client, optional circuit breaker, cached
	// reads. The session manager is the token source, so catalog requests
	// ride the same rotated credentials.
	catalogClient := catalog.NewClient(catalog.Options{
		BaseURL:   cfg.Backend.URL,
		Tokens:    mgr,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Catalog.RateLimit,
		RateBurst: cfg.Catalog.RateBurst,
	})
	var fetcher catalog.Fetcher = catalogClient
	if cfg.Catalog.BreakerEnabled {
		fetcher = catalog.NewBreakerClient(catalogClient)
		logging.Info().Msg("Catalog circuit breaker enabled")
	}

	// Catalog cache: badger outlives restarts and expires entries natively;
	// the in-memory cache needs the janitor service for its sweep.
	var metaCache *cache.Cache
	var cacheStore cache.Store
	if cfg.Cache.Persistent && db != nil {
		cacheStore = cache.NewBadgerStore(db)
		logging.Info().Msg("Catalog cache initialized (badger, persistent)")
	} else {
		metaCache = cache.New(cache.Options{Name: "catalog", Capacity: cfg.Cache.Capacity})
		cacheStore = cache.NewMemoryStore(metaCache)
		logging.Info().Int("capacity", cfg.Cache.Capacity).Msg("Catalog cache initialized (in-memory)")
	}

	catalogSvc := catalog.NewService(fetcher, cacheStore, catalog.TTLs{
		Trending:     cfg.Cache.TrendingTTL,
		Search:       cfg.Cache.SearchTTL,
		Details:      cfg.Cache.DetailsTTL,
		Availability: cfg.Cache.AvailabilityTTL,
	})
	logging.Info().Msg("Catalog gateway initialized")

	if cfg.Server.APIToken == "" && cfg.Server.PasswordHash == "" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Local API authentication is DISABLED")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  All endpoints are accessible without credentials!")
		logging.Warn().Msg("  This is acceptable for:")
		logging.Warn().Msg("    - A dashboard bound to localhost or a trusted LAN")
		logging.Warn().Msg("    - Development and CI environments")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  For anything reachable from outside, set API_TOKEN or")
		logging.Warn().Msg("  DASHBOARD_PASSWORD_HASH.")
		logging.Warn().Msg("============================================================")
	}

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(mgr, catalogSvc, hub, cfg, version)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Session layer services
	tree.AddSessionService(services.NewSessionService(mgr, cfg.Credentials, cfg.Channel.ReconnectDelay))
	if metaCache != nil {
		tree.AddSessionService(services.NewCacheJanitorService(metaCache, cfg.Cache.JanitorInterval))
	}
	logging.Info().Msg("Session runner added to supervisor tree")

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	logging.Info().Msg("WebSocket hub added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
