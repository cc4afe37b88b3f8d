// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes caps a catalog payload read. Backend pages are a few
	// hundred KB at most; anything larger is a malfunction.
	maxResponseBytes = 4 << 20

	// maxErrorBodyBytes caps how much of an error response is kept for the
	// error message.
	maxErrorBodyBytes = 64 * 1024
)

// TokenSource supplies bearer credentials for proxied requests and performs
// a rotation when the backend rejects them. The session manager implements
// it.
type TokenSource interface {
	// AccessToken returns the token to attach, or false when no
	// authenticated session exists.
	AccessToken(ctx context.Context) (string, bool)

	// RefreshToken rotates the pair after a rejection and reports whether a
	// usable token now exists.
	RefreshToken(ctx context.Context) bool
}

// Fetcher is the upstream surface the cached service draws from. Client and
// BreakerClient both satisfy it.
type Fetcher interface {
	Trending(ctx context.Context, subtype string, page int) (json.RawMessage, error)
	Search(ctx context.Context, query, subtype string, page int) (json.RawMessage, error)
	Details(ctx context.Context, source, externalID, subtype string) (json.RawMessage, error)
	Availability(ctx context.Context, source, externalID string) (json.RawMessage, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, e.g. https://backend.example.com.
	BaseURL string

	// Tokens supplies bearer credentials per request.
	Tokens TokenSource

	// Timeout bounds a single HTTP exchange. Zero means 30 seconds.
	Timeout time.Duration

	// RateLimit is the client-side request budget in requests per second.
	// Zero disables local rate limiting.
	RateLimit float64

	// RateBurst is the burst allowance for RateLimit. Zero means 1 when a
	// limit is set.
	RateBurst int
}

// Client speaks to the backend's catalog endpoints. Requests carry the
// session's bearer token; a 401 triggers one token rotation and one retry, a
// 429 is retried with exponential backoff honoring Retry-After. Safe for
// concurrent use.
type Client struct {
	baseURL        string
	tokens         TokenSource
	http           *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient builds a catalog client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		baseURL:        opts.BaseURL,
		tokens:         opts.Tokens,
		http:           &http.Client{Timeout: timeout},
		limiter:        limiter,
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// Trending fetches a page of trending items for one media type.
func (c *Client) Trending(ctx context.Context, subtype string, page int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("type", subtype)
	q.Set("page", strconv.Itoa(page))
	return c.get(ctx, "trending", "/api/catalog/trending", q)
}

// Search runs a catalog search for one media type.
func (c *Client) Search(ctx context.Context, query, subtype string, page int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("type", subtype)
	q.Set("page", strconv.Itoa(page))
	return c.get(ctx, "search", "/api/catalog/search", q)
}

// Details fetches the full metadata record for one item.
func (c *Client) Details(ctx context.Context, source, externalID, subtype string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("type", subtype)
	path := "/api/catalog/details/" + url.PathEscape(source) + "/" + url.PathEscape(externalID)
	return c.get(ctx, "details", path, q)
}

// Availability fetches streaming availability for one item.
func (c *Client) Availability(ctx context.Context, source, externalID string) (json.RawMessage, error) {
	path := "/api/catalog/availability/" + url.PathEscape(source) + "/" + url.PathEscape(externalID)
	return c.get(ctx, "availability", path, nil)
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	start := time.Now()
	data, err := c.fetch(ctx, path, query)
	metrics.RecordUpstreamRequest("catalog", op, outcomeFor(err), time.Since(start))
	return data, err
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// fetch performs one catalog request with bearer auth. A 401 is given a
// single token rotation before the request is abandoned.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if err := c.waitQuota(ctx); err != nil {
		return nil, err
	}

	refreshed := false
	for {
		token, ok := c.tokens.AccessToken(ctx)
		if !ok {
			return nil, ErrNoSession
		}

		resp, err := c.doRateLimited(ctx, path, query, token)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: read %s response: %v", ErrUpstream, path, err)
			}
			return json.RawMessage(body), nil

		case http.StatusUnauthorized:
			_ = resp.Body.Close()
			if refreshed || !c.tokens.RefreshToken(ctx) {
				return nil, fmt.Errorf("%w: backend rejected token", ErrNoSession)
			}
			logging.Debug().Str("path", path).Msg("Token rejected by backend; rotated and retrying")
			refreshed = true

		case http.StatusNotFound:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)

		default:
			body := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %s returned HTTP %d: %s", ErrUpstream, path, resp.StatusCode, body)
		}
	}
}

// doRateLimited performs an HTTP GET with automatic retry on HTTP 429.
// Backoff is exponential from the base delay (1s, 2s, 4s, 8s, 16s) unless
// the backend names its own Retry-After.
func (c *Client) doRateLimited(ctx context.Context, path string, query url.Values, token string) (*http.Response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", path, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("%w: rate limited after %d retries", ErrUpstream, c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}
		logging.Debug().Str("path", path).Dur("delay", delay).Int("attempt", attempt+1).
			Msg("Backend rate limited; backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// waitQuota blocks until the local rate limiter admits the request.
func (c *Client) waitQuota(ctx context.Context) error {
	if c.limiter == nil || c.limiter.Allow() {
		return nil
	}
	metrics.RecordRateLimitWait()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(body) == 0 {
		return "(no body)"
	}
	return string(body)
}
