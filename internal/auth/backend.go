// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchdeck/internal/metrics"
)

// maxBodySize limits how much of a response body is read. Auth responses
// are small; the cap guards against a misbehaving backend.
const maxBodySize = 64 * 1024 // 64KB

// defaultTimeout applies when the constructor receives no timeout.
const defaultTimeout = 30 * time.Second

// Client speaks the backend's REST auth contract:
//
//	POST /auth/login   {username,password,rememberMe} -> {success,user,token}
//	POST /auth/refresh (bearer refresh token)         -> {success,token}
//	POST /auth/verify  (bearer access token)          -> {success,data:{user}}
//	POST /auth/logout  (bearer access token)          -> {success}
//
// Responses outside the contract (transport failures, 5xx, undecodable
// bodies) surface as ErrNetwork; rejections map to ErrInvalidCredentials,
// ErrTokenExpired or ErrTokenInvalid via the wire error codes.
//
// Thread Safety: safe for concurrent use. Each call builds its own request.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an auth client for the backend at baseURL. A
// non-positive timeout falls back to 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Wire types of the auth endpoints.

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// authEnvelope is the response wrapper shared by all four auth endpoints.
type authEnvelope struct {
	Success bool         `json:"success"`
	User    *UserProfile `json:"user,omitempty"`
	Token   *TokenPair   `json:"token,omitempty"`
	Data    *verifyData  `json:"data,omitempty"`
	Error   *wireError   `json:"error,omitempty"`
}

type verifyData struct {
	User *UserProfile `json:"user"`
}

// Login authenticates with username/password and returns the issued token
// pair and user profile. The backend issues a 24 hour access lifetime, or
// 90 days when creds.RememberMe is set.
func (c *Client) Login(ctx context.Context, creds *Credentials) (pair *TokenPair, user *UserProfile, err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamRequest("auth", "login", outcome(err), time.Since(start)) }()

	env, status, err := c.post(ctx, "/auth/login", "", loginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		return nil, nil, err
	}
	if status == http.StatusOK && env != nil && env.Success {
		if env.Token == nil || env.User == nil {
			return nil, nil, fmt.Errorf("login: %w: response missing token or user", ErrNetwork)
		}
		return normalizePair(env.Token), env.User, nil
	}
	return nil, nil, mapAuthError("login", status, env, ErrInvalidCredentials)
}

// Refresh exchanges the refresh token for a new token pair. The new pair
// always carries the standard short access lifetime regardless of how the
// original session was created.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamRequest("auth", "refresh", outcome(err), time.Since(start)) }()

	env, status, err := c.post(ctx, "/auth/refresh", refreshToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK && env != nil && env.Success {
		if env.Token == nil {
			return nil, fmt.Errorf("refresh: %w: response missing token", ErrNetwork)
		}
		return normalizePair(env.Token), nil
	}
	return nil, mapAuthError("refresh", status, env, ErrTokenInvalid)
}

// Verify asks the backend to validate an access token and returns the user
// it belongs to. The backend is the sole authority on token validity; no
// local signature or expiry check happens here.
func (c *Client) Verify(ctx context.Context, accessToken string) (user *UserProfile, err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamRequest("auth", "verify", outcome(err), time.Since(start)) }()

	env, status, err := c.post(ctx, "/auth/verify", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK && env != nil && env.Success {
		if env.Data == nil || env.Data.User == nil {
			return nil, fmt.Errorf("verify: %w: response missing user", ErrNetwork)
		}
		return env.Data.User, nil
	}
	return nil, mapAuthError("verify", status, env, ErrTokenInvalid)
}

// Logout invalidates the session server-side. Callers treat failures as
// best-effort; local cleanup proceeds regardless.
func (c *Client) Logout(ctx context.Context, accessToken string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamRequest("auth", "logout", outcome(err), time.Since(start)) }()

	env, status, err := c.post(ctx, "/auth/logout", accessToken, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK && env != nil && env.Success {
		return nil
	}
	return mapAuthError("logout", status, env, ErrTokenInvalid)
}

// post sends a JSON POST to path with an optional bearer token and decodes
// the standard response envelope. Transport failures and undecodable 2xx
// bodies return ErrNetwork. Non-2xx responses return their best-effort
// decoded envelope (nil when the body is not JSON) for the caller to
// classify against the status.
func (c *Client) post(ctx context.Context, path, bearer string, body any) (*authEnvelope, int, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s request: %w", path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w: %v", path, ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: %w: read response: %v", path, ErrNetwork, err)
	}

	env := &authEnvelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, resp.StatusCode, fmt.Errorf("%s: %w: undecodable response body", path, ErrNetwork)
		}
		// Error responses may carry non-JSON bodies; classification falls
		// back to the HTTP status.
		return nil, resp.StatusCode, nil
	}
	return env, resp.StatusCode, nil
}

// normalizePair backfills a missing expiry instant from the access token's
// exp claim. Older backend builds omit expiresAt on the wire; the unverified
// claim is good enough for rotation scheduling, and the verify endpoint
// stays the authority on validity.
func normalizePair(pair *TokenPair) *TokenPair {
	if pair == nil || !pair.ExpiresAt.IsZero() {
		return pair
	}
	meta, err := InspectToken(pair.AccessToken)
	if err != nil || meta.ExpiresAt.IsZero() {
		return pair
	}
	pair.ExpiresAt = meta.ExpiresAt
	return pair
}

// mapAuthError classifies a non-success auth response. The wire error code
// wins when present; otherwise 401/403 map to fallback and everything else
// is treated as the backend misbehaving.
func mapAuthError(op string, status int, env *authEnvelope, fallback error) error {
	var code, msg string
	if env != nil && env.Error != nil {
		code, msg = env.Error.Code, env.Error.Message
	}

	switch code {
	case CodeInvalidCredentials:
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	case CodeTokenExpired:
		return fmt.Errorf("%s: %w", op, ErrTokenExpired)
	case CodeTokenInvalid:
		return fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s: %w", op, fallback)
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s: %w: backend returned %d: %s", op, ErrNetwork, status, msg)
}

// outcome converts a call result into a stable metric label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return Kind(err)
}
