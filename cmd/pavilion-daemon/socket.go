// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/pavilion-club/pavilion/bridge"
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/lib/codec"
	"github.com/pavilion-club/pavilion/navigate"
	"github.com/pavilion-club/pavilion/platform"
	"github.com/pavilion-club/pavilion/push"
)

// registerActions registers the daemon's socket API. Plain actions are
// one request per connection; "subscribe" holds its connection and
// streams frames.
func (core *Core) registerActions(server *bridge.Server) {
	server.Handle("status", core.handleStatus)

	server.Handle("chat.initialize", core.handleChatInitialize)
	server.Handle("chat.retry", core.handleChatRetry)
	server.Handle("chat.disconnect", core.handleChatDisconnect)
	server.Handle("chat.channel", core.handleChatChannel)

	server.Handle("identity.update", core.handleIdentityUpdate)
	server.Handle("identity.clear", core.handleIdentityClear)

	server.Handle("device.token", core.handleDeviceToken)
	server.Handle("device.permission", core.handleDevicePermission)

	server.Handle("notify.foreground", core.handleNotifyForeground)
	server.Handle("notify.opened", core.handleNotifyOpened)
	server.Handle("router.ready", core.handleRouterReady)
	server.Handle("router.suspended", core.handleRouterSuspended)

	server.Handle("feed.list", core.handleFeedList)

	server.HandleStream("subscribe", core.handleSubscribe)
}

// statusResponse is the response to the "status" action: one snapshot
// of everything the core owns.
type statusResponse struct {
	// State and Generation describe the chat session.
	State      string `cbor:"state"`
	Generation uint64 `cbor:"generation"`

	// SignedIn reports whether a member identity is loaded. The
	// identity itself is not echoed here; identity.update returns it
	// to the caller that supplied the token.
	SignedIn bool `cbor:"signed_in"`

	Device        deviceStatus         `cbor:"device"`
	Registrations []registrationStatus `cbor:"registrations"`

	// FeedSize is how many notifications the inbox store holds.
	FeedSize int `cbor:"feed_size"`

	UptimeSeconds float64 `cbor:"uptime_seconds"`
}

// deviceStatus reports the device push state. The token value itself
// stays off the socket; has_token is all a consumer needs.
type deviceStatus struct {
	Platform   string `cbor:"platform"`
	HasToken   bool   `cbor:"has_token"`
	Permission string `cbor:"permission"`
}

// registrationStatus is one provider's registration state.
type registrationStatus struct {
	Provider   string `cbor:"provider"`
	Registered bool   `cbor:"registered"`
	Error      string `cbor:"error,omitempty"`
}

func registrationResults(results []push.Result) []registrationStatus {
	statuses := make([]registrationStatus, len(results))
	for i, result := range results {
		statuses[i] = registrationStatus{
			Provider:   result.Provider,
			Registered: result.Registered,
		}
		if result.Err != nil {
			statuses[i].Error = result.Err.Error()
		}
	}
	return statuses
}

func (core *Core) deviceStatus() deviceStatus {
	snapshot := core.device.Snapshot()
	return deviceStatus{
		Platform:   snapshot.Kind.String(),
		HasToken:   snapshot.Token != "",
		Permission: string(snapshot.Permission),
	}
}

func (core *Core) handleStatus(ctx context.Context, raw []byte) (any, error) {
	size, err := core.inbox.Size(ctx)
	if err != nil {
		return nil, err
	}

	return statusResponse{
		State:         string(core.manager.State()),
		Generation:    core.manager.Generation(),
		SignedIn:      core.currentMember() != nil,
		Device:        core.deviceStatus(),
		Registrations: registrationResults(core.orchestrator.Registrations()),
		FeedSize:      size,
		UptimeSeconds: core.clock.Now().Sub(core.startedAt).Seconds(),
	}, nil
}

// sessionResponse is the response to the chat lifecycle actions.
type sessionResponse struct {
	State      string `cbor:"state"`
	Generation uint64 `cbor:"generation"`
}

func (core *Core) sessionResponse() sessionResponse {
	return sessionResponse{
		State:      string(core.manager.State()),
		Generation: core.manager.Generation(),
	}
}

func (core *Core) handleChatInitialize(ctx context.Context, raw []byte) (any, error) {
	if err := core.manager.Initialize(ctx); err != nil {
		return nil, err
	}
	return core.sessionResponse(), nil
}

func (core *Core) handleChatRetry(ctx context.Context, raw []byte) (any, error) {
	if err := core.manager.Retry(ctx); err != nil {
		return nil, err
	}
	return core.sessionResponse(), nil
}

func (core *Core) handleChatDisconnect(ctx context.Context, raw []byte) (any, error) {
	core.manager.Disconnect("shell")
	return core.sessionResponse(), nil
}

// channelRequest is the decoded request body for "chat.channel".
type channelRequest struct {
	Participants []string `cbor:"participants"`
}

// channelResponse is the response to "chat.channel".
type channelResponse struct {
	ChannelID string `cbor:"channel_id"`
	URL       string `cbor:"url,omitempty"`
	Name      string `cbor:"name,omitempty"`
}

func (core *Core) handleChatChannel(ctx context.Context, raw []byte) (any, error) {
	var request channelRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if len(request.Participants) < 2 {
		return nil, fmt.Errorf("a direct channel needs at least two participants, got %d", len(request.Participants))
	}

	channel, err := core.channels.CreateDirectChannel(ctx, request.Participants...)
	if err != nil {
		return nil, err
	}
	return channelResponse{
		ChannelID: channel.ChannelID,
		URL:       channel.URL,
		Name:      channel.Name,
	}, nil
}

// identityUpdateRequest is the decoded request body for
// "identity.update". The token value is used for the decode and
// dropped; it never reaches logs or diagnostics.
type identityUpdateRequest struct {
	IDToken string `cbor:"id_token"`
}

// identityResponse is the response to "identity.update".
type identityResponse struct {
	IdentityID string `cbor:"identity_id"`
	GivenName  string `cbor:"given_name,omitempty"`

	// HasEmail reports whether the provider released an email claim,
	// which gates the marketing push registration.
	HasEmail bool `cbor:"has_email"`
}

func (core *Core) handleIdentityUpdate(ctx context.Context, raw []byte) (any, error) {
	var request identityUpdateRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.IDToken == "" {
		return nil, fmt.Errorf("missing required field: id_token")
	}

	member, err := identity.FromIDToken(request.IDToken, core.clock.Now())
	if err != nil {
		return nil, err
	}

	// A session opened for a different member must not survive the
	// switch: its credential and socket are bound to the old identity.
	previous := core.currentMember()
	if previous != nil && previous.ID != member.ID {
		core.manager.Disconnect("identity changed")
	}

	core.setMember(member)
	core.orchestrator.UpdateIdentity(ctx, member)

	core.logger.Info("identity updated", "identity_id", member.ID)
	return identityResponse{
		IdentityID: member.ID,
		GivenName:  member.GivenName,
		HasEmail:   member.Email != "",
	}, nil
}

// logoutResponse is the response to "identity.clear".
type logoutResponse struct {
	Registrations []registrationStatus `cbor:"registrations"`
}

func (core *Core) handleIdentityClear(ctx context.Context, raw []byte) (any, error) {
	// Unregister first, while the providers still hold their records,
	// then tear the session down and drop the member. The trailing
	// UpdateIdentity records the signed-out state so a later input
	// change does not resurrect the registrations.
	results := core.orchestrator.UnregisterAll(ctx)
	core.manager.Disconnect("logout")
	core.setMember(nil)
	core.orchestrator.UpdateIdentity(ctx, nil)

	core.logger.Info("identity cleared")
	return logoutResponse{Registrations: registrationResults(results)}, nil
}

// deviceTokenRequest is the decoded request body for "device.token".
// An empty token means the shell revoked or lost the token.
type deviceTokenRequest struct {
	Token string `cbor:"token"`
}

// deviceResponse is the response to the device actions. Registration
// rounds triggered by the change run asynchronously; their results
// arrive as registration frames on the subscribe stream.
type deviceResponse struct {
	Device deviceStatus `cbor:"device"`
}

func (core *Core) handleDeviceToken(ctx context.Context, raw []byte) (any, error) {
	var request deviceTokenRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	core.device.SetToken(request.Token)
	return deviceResponse{Device: core.deviceStatus()}, nil
}

// devicePermissionRequest is the decoded request body for
// "device.permission".
type devicePermissionRequest struct {
	Status string `cbor:"status"`
}

func (core *Core) handleDevicePermission(ctx context.Context, raw []byte) (any, error) {
	var request devicePermissionRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	status, err := platform.ParsePermission(request.Status)
	if err != nil {
		return nil, err
	}

	core.device.SetPermission(status)
	return deviceResponse{Device: core.deviceStatus()}, nil
}

// notifyRequest is the decoded request body for the notify actions.
type notifyRequest struct {
	Payload navigate.Payload `cbor:"payload"`
}

func (core *Core) handleNotifyForeground(ctx context.Context, raw []byte) (any, error) {
	var request notifyRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	core.router.DeliverForeground(request.Payload)
	return nil, nil
}

func (core *Core) handleNotifyOpened(ctx context.Context, raw []byte) (any, error) {
	var request notifyRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	core.router.HandleOpened(request.Payload)
	return nil, nil
}

func (core *Core) handleRouterReady(ctx context.Context, raw []byte) (any, error) {
	core.router.OnRouterReady()
	return nil, nil
}

func (core *Core) handleRouterSuspended(ctx context.Context, raw []byte) (any, error) {
	core.router.OnRouterSuspended()
	return nil, nil
}

// feedListRequest is the decoded request body for "feed.list". A
// non-positive limit means the feed's default.
type feedListRequest struct {
	Limit int `cbor:"limit"`
}

// feedListResponse is the response to "feed.list", newest first.
type feedListResponse struct {
	Records []feed.Record `cbor:"records"`
}

func (core *Core) handleFeedList(ctx context.Context, raw []byte) (any, error) {
	var request feedListRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	records, err := core.inbox.List(ctx, request.Limit)
	if err != nil {
		return nil, err
	}
	return feedListResponse{Records: records}, nil
}
