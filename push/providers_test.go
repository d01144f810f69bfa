// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"net/http"
	"testing"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/marketing"
	"github.com/pavilion-club/pavilion/platform"
)

func fullContext() Context {
	return Context{
		DeviceToken:       "tok-A",
		Platform:          platform.IOS,
		Identity:          orchTestMember,
		ChatState:         chat.StateOpen,
		PermissionGranted: true,
	}
}

func TestMarketingCanRegister(t *testing.T) {
	provider := NewMarketingProvider(&fakeRegistrar{})

	tests := []struct {
		name   string
		mutate func(rc *Context)
		want   bool
	}{
		{"all preconditions", func(rc *Context) {}, true},
		{"no token", func(rc *Context) { rc.DeviceToken = "" }, false},
		{"no permission", func(rc *Context) { rc.PermissionGranted = false }, false},
		{"no identity", func(rc *Context) { rc.Identity = nil }, false},
		{"identity without email", func(rc *Context) {
			rc.Identity = &identity.Identity{ID: "member-7"}
		}, false},
		{"chat closed is irrelevant", func(rc *Context) { rc.ChatState = chat.StateClosed }, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rc := fullContext()
			test.mutate(&rc)
			if got := provider.CanRegister(context.Background(), rc); got != test.want {
				t.Errorf("CanRegister = %v, want %v", got, test.want)
			}
		})
	}
}

func TestChatCanRegister(t *testing.T) {
	provider := NewChatProvider(&fakeRegistrar{})

	tests := []struct {
		name   string
		mutate func(rc *Context)
		want   bool
	}{
		{"all preconditions", func(rc *Context) {}, true},
		{"no token", func(rc *Context) { rc.DeviceToken = "" }, false},
		{"no permission", func(rc *Context) { rc.PermissionGranted = false }, false},
		{"no identity", func(rc *Context) { rc.Identity = nil }, false},
		{"session closed", func(rc *Context) { rc.ChatState = chat.StateClosed }, false},
		{"session connecting", func(rc *Context) { rc.ChatState = chat.StateConnecting }, false},
		{"session errored", func(rc *Context) { rc.ChatState = chat.StateError }, false},
		{"missing email is irrelevant", func(rc *Context) {
			rc.Identity = &identity.Identity{ID: "member-7"}
		}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rc := fullContext()
			test.mutate(&rc)
			if got := provider.CanRegister(context.Background(), rc); got != test.want {
				t.Errorf("CanRegister = %v, want %v", got, test.want)
			}
		})
	}
}

func TestMarketingRegisterSuppressesUnchangedPair(t *testing.T) {
	registrar := &fakeRegistrar{}
	provider := NewMarketingProvider(registrar)
	ctx := context.Background()
	rc := fullContext()

	for range 3 {
		if _, err := provider.Register(ctx, rc); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if got := registrar.registerCalls(); len(got) != 1 {
		t.Fatalf("register calls = %v, want one", got)
	}

	// A rotated token breaks the suppression.
	rc.DeviceToken = "tok-B"
	record, err := provider.Register(ctx, rc)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if record.Token != "tok-B" || record.Key != "ada@example.com" {
		t.Errorf("record = %+v", record)
	}
	if got := registrar.registerCalls(); len(got) != 2 {
		t.Errorf("register calls = %v, want two", got)
	}

	// So does a changed email.
	rc.Identity = &identity.Identity{ID: "member-41", Email: "ada@new.example.com"}
	if _, err := provider.Register(ctx, rc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := registrar.registerCalls(); len(got) != 3 {
		t.Errorf("register calls = %v, want three", got)
	}
}

func TestMarketingUnregisterWithoutRegistration(t *testing.T) {
	registrar := &fakeRegistrar{}
	provider := NewMarketingProvider(registrar)

	if err := provider.Unregister(context.Background()); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if got := registrar.unregisterCalls(); len(got) != 0 {
		t.Errorf("unregister calls = %v, want none", got)
	}
}

func TestMarketingUnregisterTreatsGoneAsRemoved(t *testing.T) {
	registrar := &fakeRegistrar{}
	provider := NewMarketingProvider(registrar)
	ctx := context.Background()

	if _, err := provider.Register(ctx, fullContext()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	registrar.setUnregisterErr(&marketing.APIError{StatusCode: http.StatusNotFound, Detail: "unknown device"})
	if err := provider.Unregister(ctx); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if provider.IsRegistered() {
		t.Error("record kept after the platform reported the device gone")
	}
}

func TestChatUnregisterUsesRecordedIdentity(t *testing.T) {
	registrar := &fakeRegistrar{}
	provider := NewChatProvider(registrar)
	ctx := context.Background()

	if _, err := provider.Register(ctx, fullContext()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// By unregistration time the session and identity are gone; the
	// call must use the recorded pair.
	if err := provider.Unregister(ctx); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	got := registrar.unregisterCalls()
	if len(got) != 1 || got[0] != "member-41|tok-A" {
		t.Errorf("unregister calls = %v, want [member-41|tok-A]", got)
	}
	if provider.IsRegistered() {
		t.Error("provider still registered")
	}
}

func TestChatUnregisterTreatsGoneAsRemoved(t *testing.T) {
	registrar := &fakeRegistrar{}
	provider := NewChatProvider(registrar)
	ctx := context.Background()

	if _, err := provider.Register(ctx, fullContext()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	registrar.setUnregisterErr(&chat.PlatformError{
		Code:       chat.ErrCodeNotFound,
		Message:    "unknown device",
		StatusCode: http.StatusNotFound,
	})
	if err := provider.Unregister(ctx); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if provider.IsRegistered() {
		t.Error("record kept after the platform reported the device gone")
	}
}
