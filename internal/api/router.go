// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/watchdeck/internal/config"
)

// Router wires handlers and middleware into the chi route tree.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router for the given handler and configuration.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(&cfg.Server),
	}
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())   // X-Request-ID header with logging context
	r.Use(chimiddleware.RealIP)     // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)  // Recover from panics
	r.Use(router.middleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting and no local auth so monitoring tools and
	// container orchestrators can probe without credentials.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Session Endpoints
	// ========================
	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(router.middleware.Authenticate)

		r.Get("/", router.handler.Session)

		// Login has the strictest rate limiting (5 attempts per 5 minutes)
		r.With(router.middleware.RateLimitLogin()).Post("/login", router.handler.Login)
		r.Post("/logout", router.handler.Logout)
		r.Post("/refresh", router.handler.Refresh)
	})

	// ========================
	// Catalog Endpoints
	// ========================
	// Read-only pass-through served cache-aside from the TTL cache.
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(router.middleware.Authenticate)

		r.Get("/trending", router.handler.CatalogTrending)
		r.Get("/search", router.handler.CatalogSearch)
		r.Get("/details/{source}/{id}", router.handler.CatalogDetails)
		r.Get("/availability/{source}/{id}", router.handler.CatalogAvailability)
	})

	// ========================
	// WebSocket Endpoint
	// ========================
	// The rate limit applies to upgrade attempts, not message traffic.
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(router.middleware.RateLimitWebSocket())
		r.Use(PrometheusMetrics())
		r.Use(router.middleware.Authenticate)

		r.Get("/", router.handler.WebSocket)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	// Unmatched routes get the JSON envelope instead of chi's plain text
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "Route not found")
	})

	return r
}
