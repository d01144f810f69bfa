// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat manages the session with the chat platform: credential
// issuance, the live event stream, refresh, and teardown.
//
// The platform bills by active connected identity per period, so the
// session is strictly lazy: nothing in this package connects on its
// own. The Manager stays Closed until an explicit Initialize, in
// practice the bridge action behind a member actually opening a chat
// surface. Login alone never produces chat traffic.
//
// The Manager owns the session credential and the session state;
// every other component reads them through state-change observers and
// never mutates them.
package chat
