// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the credential pair issued by the backend. The pair is always
// replaced as a whole; there is no partial update of either token.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Clone returns an independent copy of the pair.
func (p *TokenPair) Clone() *TokenPair {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// UserProfile is the backend's view of the authenticated user.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Clone returns an independent copy of the profile.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	cu := *u
	return &cu
}

// Credentials carries a login request.
type Credentials struct {
	Username   string `json:"username" validate:"required,min=1,max=255"`
	Password   string `json:"password" validate:"required,min=1,max=1024"`
	RememberMe bool   `json:"rememberMe"`
}

// TokenMeta is the non-authoritative metadata embedded in a JWT access token.
// Used for logging and the expiry gauge only; the backend's verify endpoint
// remains the authority on token validity.
type TokenMeta struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectToken decodes the subject and expiry claims of a JWT access token
// without verifying its signature.
func InspectToken(token string) (*TokenMeta, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	meta := &TokenMeta{}
	if sub, err := claims.GetSubject(); err == nil {
		meta.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		meta.ExpiresAt = exp.Time
	}
	return meta, nil
}
