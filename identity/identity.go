// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity integrates the identity provider into the core.
//
// The shell performs the actual sign-in flow and hands the resulting
// ID token to the daemon over the bridge. The core does not verify the
// token's signature; verification is the backend's job when the token
// is presented there; the core only extracts the claims it needs to
// drive chat and push registration. Expiry is still checked so a stale
// token from a relaunched shell is rejected.
//
// Privacy: only the given name ever leaves the core (it becomes the
// chat nickname other members see). Full-name claims are dropped at
// decode time so no code path downstream can leak them.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Identity is the signed-in member as the core knows them.
type Identity struct {
	// ID is the identity provider's stable subject identifier. It keys
	// the chat session and the chat push registration.
	ID string

	// Email keys the marketing push registration. May be empty when
	// the provider did not release it; the marketing provider then
	// simply cannot register.
	Email string

	// GivenName is the member's first name, used as the chat nickname.
	// May be empty.
	GivenName string
}

// ErrExpiredToken is returned by FromIDToken for a token past its
// expiry claim.
var ErrExpiredToken = errors.New("identity: token expired")

// idClaims is the subset of ID-token claims the core reads.
type idClaims struct {
	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// FromIDToken extracts an Identity from a raw identity-provider JWT.
// The signature is NOT verified (see the package comment); malformed
// tokens, tokens without a subject, tokens without an expiry claim,
// and tokens expired relative to now are rejected.
func FromIDToken(raw string, now time.Time) (*Identity, error) {
	var claims idClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("identity: parsing token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("identity: token has no subject")
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("identity: token has no expiry")
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}

	return &Identity{
		ID:        claims.Subject,
		Email:     strings.TrimSpace(claims.Email),
		GivenName: givenName(claims),
	}, nil
}

// givenName picks the first name. Prefers the explicit given_name
// claim; falls back to the first word of the full name claim. The
// remainder of the full name is discarded here and nowhere retained.
func givenName(claims idClaims) string {
	if name := strings.TrimSpace(claims.GivenName); name != "" {
		return name
	}
	full := strings.Fields(claims.Name)
	if len(full) == 0 {
		return ""
	}
	return full[0]
}
