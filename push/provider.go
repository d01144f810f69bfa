// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/platform"
)

// Context is the registration context a provider is evaluated against:
// a read-only snapshot of every input a precondition may depend on,
// assembled by the orchestrator at evaluation time.
type Context struct {
	// DeviceToken is the platform push token, empty until the shell
	// delivers one.
	DeviceToken string

	// Platform is the device platform.
	Platform platform.Kind

	// Identity is the signed-in member, nil when signed out.
	Identity *identity.Identity

	// ChatState is the chat session state at snapshot time.
	ChatState chat.State

	// PermissionGranted reports whether the member has granted the
	// OS-level notification permission.
	PermissionGranted bool
}

// Record identifies one accepted registration: the device token that
// was registered and the provider-scoped key that made registration
// possible (email for the marketing provider, identity ID for the chat
// provider). A provider holding a Record equal to the current inputs
// skips the network call.
type Record struct {
	Token string
	Key   string
}

// Result is the outcome of evaluating one provider.
type Result struct {
	// Provider is the provider's name.
	Provider string

	// Registered reports whether the provider holds an accepted
	// registration after the evaluation.
	Registered bool

	// Err is the failure, if the evaluation performed a network call
	// and it failed. An unmet precondition is not an error.
	Err error
}

// Provider is one push delivery channel. Each provider owns its
// registration record exclusively; the orchestrator never inspects
// provider internals beyond this interface.
//
// Implementations must be safe for concurrent use: the orchestrator
// calls providers from fan-out goroutines.
type Provider interface {
	// Name identifies the provider in results and diagnostics.
	Name() string

	// CanRegister reports whether the provider's registration
	// precondition holds for the given context. It must not perform
	// network calls.
	CanRegister(ctx context.Context, rc Context) bool

	// Register ensures the provider's registration matches the
	// context, performing a network call only when the (token, key)
	// pair differs from the last accepted registration.
	Register(ctx context.Context, rc Context) (Record, error)

	// Unregister removes the last accepted registration, if any.
	// Unregistering without a prior registration is a no-op.
	Unregister(ctx context.Context) error

	// IsRegistered reports whether the provider holds an accepted
	// registration.
	IsRegistered() bool
}
