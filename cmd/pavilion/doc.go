// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Pavilion is the control plane CLI for the Pavilion core daemon. It
// provides subcommands for the daemon's full socket surface: status,
// chat session lifecycle (chat), member identity (identity), device
// push state (device), notification routing (notify, router), the
// archived feed (feed), and a live frame follower (stream).
package main
