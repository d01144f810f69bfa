// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/navigate"
)

// Mirrors of the daemon's socket response shapes. The daemon treats
// these as additive-only: fields may be added on the daemon side, and
// unknown fields are ignored here, so an older CLI keeps working
// against a newer daemon.

// statusResult mirrors the "status" response.
type statusResult struct {
	State      string `cbor:"state" json:"state"`
	Generation uint64 `cbor:"generation" json:"generation"`
	SignedIn   bool   `cbor:"signed_in" json:"signed_in"`

	Device        deviceInfo           `cbor:"device" json:"device"`
	Registrations []registrationStatus `cbor:"registrations" json:"registrations"`

	FeedSize      int     `cbor:"feed_size" json:"feed_size"`
	UptimeSeconds float64 `cbor:"uptime_seconds" json:"uptime_seconds"`
}

// deviceInfo mirrors the device block of the status and device
// responses. The daemon never puts the token value on the socket;
// has_token is all a consumer gets.
type deviceInfo struct {
	Platform   string `cbor:"platform" json:"platform"`
	HasToken   bool   `cbor:"has_token" json:"has_token"`
	Permission string `cbor:"permission" json:"permission"`
}

// registrationStatus mirrors one provider's registration state.
type registrationStatus struct {
	Provider   string `cbor:"provider" json:"provider"`
	Registered bool   `cbor:"registered" json:"registered"`
	Error      string `cbor:"error,omitempty" json:"error,omitempty"`
}

// sessionResult mirrors the chat lifecycle responses.
type sessionResult struct {
	State      string `cbor:"state" json:"state"`
	Generation uint64 `cbor:"generation" json:"generation"`
}

// channelResult mirrors the "chat.channel" response.
type channelResult struct {
	ChannelID string `cbor:"channel_id" json:"channel_id"`
	URL       string `cbor:"url,omitempty" json:"url,omitempty"`
	Name      string `cbor:"name,omitempty" json:"name,omitempty"`
}

// identityResult mirrors the "identity.update" response.
type identityResult struct {
	IdentityID string `cbor:"identity_id" json:"identity_id"`
	GivenName  string `cbor:"given_name,omitempty" json:"given_name,omitempty"`
	HasEmail   bool   `cbor:"has_email" json:"has_email"`
}

// logoutResult mirrors the "identity.clear" response.
type logoutResult struct {
	Registrations []registrationStatus `cbor:"registrations" json:"registrations"`
}

// deviceResult mirrors the device action responses. Registration
// rounds triggered by a device change run asynchronously; results
// arrive on the subscribe stream, not here.
type deviceResult struct {
	Device deviceInfo `cbor:"device" json:"device"`
}

// feedListResult mirrors the "feed.list" response, newest first.
type feedListResult struct {
	Records []feed.Record `cbor:"records" json:"records"`
}

// streamFrame mirrors the daemon's subscribe stream frames. The Type
// field discriminates: "state", "registration", "navigate", "banner",
// "heartbeat".
type streamFrame struct {
	Type string `cbor:"type" json:"type"`

	State  string `cbor:"state,omitempty" json:"state,omitempty"`
	Reason string `cbor:"reason,omitempty" json:"reason,omitempty"`
	Error  string `cbor:"error,omitempty" json:"error,omitempty"`

	Target  *navigate.Target  `cbor:"target,omitempty" json:"target,omitempty"`
	Payload *navigate.Payload `cbor:"payload,omitempty" json:"payload,omitempty"`

	Registrations []registrationStatus `cbor:"registrations,omitempty" json:"registrations,omitempty"`
}
