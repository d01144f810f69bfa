// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Anything in the core that reads the wall clock or schedules work
// (the session refresh ticker, the initialize retry delay, the
// notification dedup window) takes a Clock instead of calling the
// time package directly. Production code injects Real(); tests inject
// Fake() and drive time with Advance.
//
// The fake registers a pending waiter for every After, AfterFunc, and
// NewTicker call. Tests synchronize with WaitForTimers before calling
// Advance, which removes the race between a goroutine scheduling a
// timer and the test firing it:
//
//	fake := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
//	manager := chat.NewManager(chat.ManagerConfig{Clock: fake, ...})
//	// ... start the refresh loop ...
//	fake.WaitForTimers(1)
//	fake.Advance(30 * time.Second) // one refresh tick, deterministically
package clock
