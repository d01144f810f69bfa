// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// State is the lifecycle state of the chat session.
type State string

const (
	// StateClosed is the resting state: no credential, no stream, no
	// network activity. A fresh Manager starts here and Disconnect
	// always returns here.
	StateClosed State = "closed"

	// StateInitializing means a session credential is being fetched
	// from the token endpoint.
	StateInitializing State = "initializing"

	// StateConnecting means a credential is held and the live stream
	// is being opened.
	StateConnecting State = "connecting"

	// StateOpen means the live stream is established. The refresh
	// ticker runs only in this state.
	StateOpen State = "open"

	// StateError means initialization or the live stream failed and
	// the retry budget is spent. Only an explicit Retry (or
	// Initialize) leaves this state.
	StateError State = "error"
)

// StateChange describes one transition, delivered to observers
// registered with OnStateChange.
type StateChange struct {
	Previous State
	Current  State

	// Reason is a short user-safe description of what drove the
	// transition ("initialize", "stream open", "logout"). It never
	// contains token material.
	Reason string

	// Err is the underlying failure for transitions into StateError,
	// nil otherwise.
	Err error
}
