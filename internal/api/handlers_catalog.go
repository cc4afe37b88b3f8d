// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/watchdeck/internal/catalog"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/validation"
)

// catalogSearchRequest validates the /catalog/search query parameters.
type catalogSearchRequest struct {
	Query     string `validate:"required,min=1,max=200"`
	MediaType string `validate:"omitempty,oneof=movie show"`
	Page      int    `validate:"omitempty,min=1,max=500"`
}

// catalogBrowseRequest validates the /catalog/trending query parameters.
type catalogBrowseRequest struct {
	MediaType string `validate:"omitempty,oneof=movie show"`
	Page      int    `validate:"omitempty,min=1,max=500"`
}

// CatalogTrending serves trending items from the cached catalog gateway.
// Responses are raw backend payloads passed through unmodified; provider
// paging lives inside the payload.
func (h *Handler) CatalogTrending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil {
		rw.ServiceUnavailable("Catalog service unavailable")
		return
	}

	req := catalogBrowseRequest{
		MediaType: r.URL.Query().Get("type"),
		Page:      getIntParam(r, "page", 1),
	}
	if !h.validateCatalogRequest(rw, &req) {
		return
	}

	payload, err := h.catalog.Trending(r.Context(), req.MediaType, req.Page)
	if err != nil {
		h.writeCatalogError(rw, r, "trending", err)
		return
	}

	rw.Success(payload)
}

// CatalogSearch runs a catalog search against the backend proxy.
func (h *Handler) CatalogSearch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil {
		rw.ServiceUnavailable("Catalog service unavailable")
		return
	}

	req := catalogSearchRequest{
		Query:     r.URL.Query().Get("query"),
		MediaType: r.URL.Query().Get("type"),
		Page:      getIntParam(r, "page", 1),
	}
	if !h.validateCatalogRequest(rw, &req) {
		return
	}

	payload, err := h.catalog.Search(r.Context(), req.Query, req.MediaType, req.Page)
	if err != nil {
		h.writeCatalogError(rw, r, "search", err)
		return
	}

	rw.Success(payload)
}

// CatalogDetails serves item metadata for one external ID.
func (h *Handler) CatalogDetails(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil {
		rw.ServiceUnavailable("Catalog service unavailable")
		return
	}

	source := chi.URLParam(r, "source")
	externalID := chi.URLParam(r, "id")
	if source == "" || externalID == "" {
		rw.BadRequest("source and id are required")
		return
	}

	payload, err := h.catalog.Details(r.Context(), source, externalID, r.URL.Query().Get("type"))
	if err != nil {
		h.writeCatalogError(rw, r, "details", err)
		return
	}

	rw.Success(payload)
}

// CatalogAvailability serves availability/ownership data for one external ID.
func (h *Handler) CatalogAvailability(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.catalog == nil {
		rw.ServiceUnavailable("Catalog service unavailable")
		return
	}

	source := chi.URLParam(r, "source")
	externalID := chi.URLParam(r, "id")
	if source == "" || externalID == "" {
		rw.BadRequest("source and id are required")
		return
	}

	payload, err := h.catalog.Availability(r.Context(), source, externalID)
	if err != nil {
		h.writeCatalogError(rw, r, "availability", err)
		return
	}

	rw.Success(payload)
}

// validateCatalogRequest validates query parameters and writes the 400 on
// failure. Returns true when the request may proceed.
func (h *Handler) validateCatalogRequest(rw *ResponseWriter, req interface{}) bool {
	verr := validation.ValidateStruct(req)
	if verr == nil {
		return true
	}

	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	return false
}

// writeCatalogError maps catalog gateway failures onto HTTP statuses:
// missing session to 401, missing items to 404, an open circuit to 503,
// everything else to 502.
func (h *Handler) writeCatalogError(rw *ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNoSession):
		rw.Unauthorized("No authenticated backend session")
	case errors.Is(err, catalog.ErrNotFound):
		rw.NotFound("Catalog item not found")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rw.ServiceUnavailable("Catalog temporarily unavailable")
	default:
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("op", op).
			Msg("Catalog request failed")
		rw.ExternalServiceError("catalog")
	}
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
