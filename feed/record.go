// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is the caller-supplied part of a record. The feed assigns the
// ID and receive time.
type Entry struct {
	// Provider names the delivery provider the notification came
	// through.
	Provider string `json:"provider,omitempty"`

	// Title and Body are the notification's display strings.
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`

	// Target is the canonical deep-link form of the parsed navigation
	// target, empty for unroutable notifications.
	Target string `json:"target,omitempty"`
}

// Record is one archived notification.
type Record struct {
	// ID is a ULID: time-ordered, so ID order is receive order.
	ID ulid.ULID `json:"id"`

	Provider string `json:"provider,omitempty"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Target   string `json:"target,omitempty"`

	// ReceivedAt is when the feed accepted the record, in UTC.
	ReceivedAt time.Time `json:"received_at"`
}
