// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"time"

	"github.com/pavilion-club/pavilion/lib/secret"
)

// Credential is a time-limited session credential issued by the chat
// platform's token endpoint. The access token lives in locked memory
// and is zeroed on Close; it must never be logged or persisted.
//
// A Credential is owned by exactly one party at a time: the flow that
// fetched it until it is installed in the Manager, the Manager after.
// The owner closes it.
type Credential struct {
	// IdentityID is the member the credential was issued for.
	IdentityID string

	// AccessToken authenticates the live stream. Nil only after Close.
	AccessToken *secret.Buffer

	// AppID echoes the application the token is scoped to.
	AppID string

	// ExpiresAt is the platform-assigned expiry.
	ExpiresAt time.Time
}

// DueForRefresh reports whether the credential is within skew of
// expiry (or past it) at the given time.
func (c *Credential) DueForRefresh(now time.Time, skew time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-skew))
}

// Close zeroes and releases the access token. Safe to call twice.
func (c *Credential) Close() {
	if c.AccessToken != nil {
		c.AccessToken.Close()
		c.AccessToken = nil
	}
}
