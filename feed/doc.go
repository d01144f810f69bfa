// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed is the notification inbox: every push notification the
// router delivers is archived here so the member can review what they
// were sent, across restarts.
//
// The feed stores only push records (provider, display strings,
// navigation target). Chat message history lives on the chat platform
// and is deliberately not persisted by the core.
//
// Reads are served from a fixed-capacity in-memory ring of the most
// recent records, warmed from SQLite at open and written through on
// every add; only queries that outgrow the ring touch the database.
// Record IDs are ULIDs, so lexicographic order is chronological order
// and the newest-N query needs no separate timestamp index.
package feed
