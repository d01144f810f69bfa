// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/pavilion-club/pavilion/marketing"
	"github.com/pavilion-club/pavilion/platform"
)

// MarketingRegistrar is the subset of the marketing platform client the
// provider uses.
type MarketingRegistrar interface {
	RegisterDevice(ctx context.Context, email, token string, kind platform.Kind) error
	UnregisterDevice(ctx context.Context, email, token string) error
}

var _ MarketingRegistrar = (*marketing.Client)(nil)

// MarketingProvider registers the device with the marketing platform,
// keyed by the member's email. It needs no chat session: marketing
// pushes flow as soon as a token, permission, and an email exist.
type MarketingProvider struct {
	registrar MarketingRegistrar

	mu     sync.Mutex
	record *Record
}

var _ Provider = (*MarketingProvider)(nil)

// NewMarketingProvider creates the marketing push provider.
func NewMarketingProvider(registrar MarketingRegistrar) *MarketingProvider {
	return &MarketingProvider{registrar: registrar}
}

func (p *MarketingProvider) Name() string { return "marketing" }

// CanRegister requires a device token, notification permission, and a
// signed-in member with an email on file.
func (p *MarketingProvider) CanRegister(_ context.Context, rc Context) bool {
	return rc.DeviceToken != "" &&
		rc.PermissionGranted &&
		rc.Identity != nil &&
		rc.Identity.Email != ""
}

// Register attaches the device to the member's marketing profile. A
// registration already held for the same (token, email) pair is
// accepted without a network call.
func (p *MarketingProvider) Register(ctx context.Context, rc Context) (Record, error) {
	email := rc.Identity.Email

	p.mu.Lock()
	if p.record != nil && p.record.Token == rc.DeviceToken && p.record.Key == email {
		record := *p.record
		p.mu.Unlock()
		return record, nil
	}
	p.mu.Unlock()

	if err := p.registrar.RegisterDevice(ctx, email, rc.DeviceToken, rc.Platform); err != nil {
		return Record{}, fmt.Errorf("push: marketing registration: %w", err)
	}

	record := Record{Token: rc.DeviceToken, Key: email}
	p.mu.Lock()
	p.record = &record
	p.mu.Unlock()
	return record, nil
}

// Unregister removes the device for the last-registered email. The
// record is kept on failure so a later attempt retries; a device the
// platform no longer knows counts as removed.
func (p *MarketingProvider) Unregister(ctx context.Context) error {
	p.mu.Lock()
	record := p.record
	p.mu.Unlock()
	if record == nil {
		return nil
	}

	if err := p.registrar.UnregisterDevice(ctx, record.Key, record.Token); err != nil && !marketingGone(err) {
		return fmt.Errorf("push: marketing unregistration: %w", err)
	}

	p.mu.Lock()
	p.record = nil
	p.mu.Unlock()
	return nil
}

func (p *MarketingProvider) IsRegistered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record != nil
}

func marketingGone(err error) bool {
	var apiErr *marketing.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
