// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform models the device platform the core is running
// behind: which OS shell embeds the daemon, what its push channel can
// do, and the current device push state (token and permission).
//
// The shell owns the OS APIs (APNs/FCM token fetch, the permission
// prompt, the notification-settings deep link). The core never calls
// them. Instead the shell pushes token and permission updates over the
// bridge, and [Device] holds the latest values as the single source of
// truth for the push registration orchestrator.
//
// The web shell has no push channel at all: no adapter, no token, no
// permission prompt. On web the whole push subsystem is inert, which
// falls out of [Kind.HasPush] returning false and no token ever
// arriving.
package platform

import (
	"fmt"
	"sync"
)

// Kind identifies the device platform a core build serves.
type Kind string

const (
	IOS     Kind = "ios"
	Android Kind = "android"
	Web     Kind = "web"
)

// ParseKind validates a platform name from config or the bridge.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case IOS, Android, Web:
		return Kind(name), nil
	}
	return "", fmt.Errorf("platform: unknown kind %q", name)
}

// String returns the platform name.
func (k Kind) String() string { return string(k) }

// HasPush reports whether the platform has a push delivery channel.
// Web does not: the shell cannot obtain a device token, so providers
// can never register and the notification router never receives
// payloads.
func (k Kind) HasPush() bool { return k == IOS || k == Android }

// Capabilities describes what the platform's push channel supports
// beyond plain title/body delivery.
type Capabilities struct {
	// ImageAttachments: notifications can carry an image that the OS
	// renders in the expanded banner.
	ImageAttachments bool

	// SettingsDeepLink: the shell can deep-link the user into the OS
	// notification settings for the app.
	SettingsDeepLink bool
}

// Capabilities returns the per-platform capability table.
func (k Kind) Capabilities() Capabilities {
	switch k {
	case IOS:
		return Capabilities{ImageAttachments: true, SettingsDeepLink: true}
	case Android:
		return Capabilities{ImageAttachments: false, SettingsDeepLink: true}
	default:
		return Capabilities{}
	}
}

// PermissionStatus is the OS notification permission state as last
// reported by the shell.
type PermissionStatus string

const (
	// PermissionUndetermined: the user has not been prompted yet.
	PermissionUndetermined PermissionStatus = "undetermined"
	// PermissionGranted: the user allowed notifications.
	PermissionGranted PermissionStatus = "granted"
	// PermissionDenied: the user declined; the shell must send the
	// user to OS settings to change it.
	PermissionDenied PermissionStatus = "denied"
)

// ParsePermission validates a permission status from the bridge.
func ParsePermission(status string) (PermissionStatus, error) {
	switch PermissionStatus(status) {
	case PermissionUndetermined, PermissionGranted, PermissionDenied:
		return PermissionStatus(status), nil
	}
	return "", fmt.Errorf("platform: unknown permission status %q", status)
}

// Snapshot is a point-in-time copy of the device push state, handed to
// observers and embedded in registration contexts.
type Snapshot struct {
	Kind       Kind
	Token      string
	Permission PermissionStatus
}

// Device holds the current device push state. The bridge's
// device.token and device.permission actions update it; observers
// (the registration orchestrator) are notified of every change.
//
// Device is safe for concurrent use. Observer callbacks run
// synchronously in the updating goroutine, in registration order,
// outside the internal lock.
type Device struct {
	mu         sync.Mutex
	kind       Kind
	token      string
	permission PermissionStatus
	observers  []func(Snapshot)
}

// NewDevice creates a Device for the given platform with no token and
// undetermined permission.
func NewDevice(kind Kind) *Device {
	return &Device{
		kind:       kind,
		permission: PermissionUndetermined,
	}
}

// Snapshot returns the current device state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{Kind: d.kind, Token: d.token, Permission: d.permission}
}

// OnChange registers an observer for token and permission changes.
// Must be called before the first update; there is no unregister.
func (d *Device) OnChange(observer func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, observer)
}

// SetToken records a new device push token. An empty token means the
// shell revoked or lost the token. Observers are notified only when
// the value actually changed.
func (d *Device) SetToken(token string) {
	d.mu.Lock()
	if d.token == token {
		d.mu.Unlock()
		return
	}
	d.token = token
	snapshot := Snapshot{Kind: d.kind, Token: d.token, Permission: d.permission}
	observers := d.observersLocked()
	d.mu.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}

// SetPermission records a new permission status. Observers are
// notified only when the value actually changed.
func (d *Device) SetPermission(status PermissionStatus) {
	d.mu.Lock()
	if d.permission == status {
		d.mu.Unlock()
		return
	}
	d.permission = status
	snapshot := Snapshot{Kind: d.kind, Token: d.token, Permission: d.permission}
	observers := d.observersLocked()
	d.mu.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}

// observersLocked copies the observer list so callbacks run outside
// the lock. Callers must hold d.mu.
func (d *Device) observersLocked() []func(Snapshot) {
	observers := make([]func(Snapshot), len(d.observers))
	copy(observers, d.observers)
	return observers
}
