// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// pavilion-watch is a live terminal dashboard for the Pavilion daemon.
// It subscribes to the daemon's control socket and renders the chat
// session state, push registrations, and the notification feed as they
// change, reconnecting with backoff when the daemon restarts.
//
// The watch is read-only: it never triggers session or registration
// changes. Use the pavilion CLI for that.
package main
