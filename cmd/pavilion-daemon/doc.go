// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Pavilion-daemon is the client-core daemon the native shells embed.
// It owns everything below the UI: the chat session lifecycle, push
// registration across providers, notification routing and deep links,
// and the notification inbox. Shells talk to it over a CBOR Unix
// socket; the daemon is the single writer for all of that state, so
// an iOS shell, a widget extension, and the operator CLI always see
// the same session.
//
// # Startup
//
// The daemon reads its YAML configuration from the file named by
// PAVILION_CONFIG (or --config), validates it, and creates the state
// directories it needs. API keys are read from the environment
// variables the config names into locked memory; the values never
// appear in logs or on the socket.
//
// # Socket API
//
// Requests are CBOR maps with an "action" field, one request per
// connection: status, chat.initialize, identity.update, device.token,
// notify.opened, feed.list, and the rest of the control surface. The
// "subscribe" action holds its connection open and streams event
// frames (session state, navigation targets, banners, registration
// results) until the client disconnects.
package main
