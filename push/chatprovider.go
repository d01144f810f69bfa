// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/platform"
)

// ChatRegistrar is the subset of the chat platform client the provider
// uses. Device registration is app-level auth, so it works whether or
// not a session is connected.
type ChatRegistrar interface {
	RegisterDevice(ctx context.Context, identityID, token string, kind platform.Kind) error
	UnregisterDevice(ctx context.Context, identityID, token string) error
}

var _ ChatRegistrar = (*chat.Client)(nil)

// ChatProvider registers the device with the chat platform, keyed by
// identity ID. It is session-bound: registration waits for the session
// to reach open, so members who never open chat never register and the
// platform never pushes to them.
type ChatProvider struct {
	registrar ChatRegistrar

	mu     sync.Mutex
	record *Record
}

var _ Provider = (*ChatProvider)(nil)

// NewChatProvider creates the chat push provider.
func NewChatProvider(registrar ChatRegistrar) *ChatProvider {
	return &ChatProvider{registrar: registrar}
}

func (p *ChatProvider) Name() string { return "chat" }

// CanRegister requires a device token, notification permission, a
// signed-in member, and an open chat session.
func (p *ChatProvider) CanRegister(_ context.Context, rc Context) bool {
	return rc.DeviceToken != "" &&
		rc.PermissionGranted &&
		rc.Identity != nil &&
		rc.Identity.ID != "" &&
		rc.ChatState == chat.StateOpen
}

// Register registers the device token for the member. A registration
// already held for the same (token, identity) pair is accepted without
// a network call.
func (p *ChatProvider) Register(ctx context.Context, rc Context) (Record, error) {
	identityID := rc.Identity.ID

	p.mu.Lock()
	if p.record != nil && p.record.Token == rc.DeviceToken && p.record.Key == identityID {
		record := *p.record
		p.mu.Unlock()
		return record, nil
	}
	p.mu.Unlock()

	if err := p.registrar.RegisterDevice(ctx, identityID, rc.DeviceToken, rc.Platform); err != nil {
		return Record{}, fmt.Errorf("push: chat registration: %w", err)
	}

	record := Record{Token: rc.DeviceToken, Key: identityID}
	p.mu.Lock()
	p.record = &record
	p.mu.Unlock()
	return record, nil
}

// Unregister removes the device registration for the recorded
// identity. This runs after the session is gone (disconnect, logout),
// which is fine: the endpoint uses app-level auth, not session auth.
func (p *ChatProvider) Unregister(ctx context.Context) error {
	p.mu.Lock()
	record := p.record
	p.mu.Unlock()
	if record == nil {
		return nil
	}

	if err := p.registrar.UnregisterDevice(ctx, record.Key, record.Token); err != nil && !chatGone(err) {
		return fmt.Errorf("push: chat unregistration: %w", err)
	}

	p.mu.Lock()
	p.record = nil
	p.mu.Unlock()
	return nil
}

func (p *ChatProvider) IsRegistered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record != nil
}

func chatGone(err error) bool {
	var platformErr *chat.PlatformError
	return errors.As(err, &platformErr) && platformErr.StatusCode == http.StatusNotFound
}
