// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package navigate turns push notification payloads into in-app
// navigation.
//
// Payloads arrive in provider-specific shapes; [Table.Parse] extracts a
// canonical [Target] through a prioritized chain (explicit deep link,
// app-scheme URL, chat channel ID) and validates it against the route
// table. Parsing fails closed: an unparseable or unknown destination
// yields [ErrNoTarget] and no navigation, never a crash and never a
// default route.
//
// The [Router] decides what to do with a payload: foreground deliveries
// are deduplicated by fingerprint and presented as in-app banners;
// opened notifications dispatch their target once the UI router is
// ready, with at most one pending target retained (newest wins).
package navigate
