// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package navigate

import (
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/pavilion-club/pavilion/lib/clock"
)

// DefaultDedupWindow is how long a fingerprint suppresses duplicate
// foreground presentations of the same logical notification.
const DefaultDedupWindow = 60 * time.Second

// Fingerprint is a 32-byte BLAKE3 digest identifying one logical
// notification for duplicate suppression.
type Fingerprint [32]byte

// String returns a short hex prefix, enough for log correlation.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// dedupDomainKey is the BLAKE3 key for the dedup domain. The byte
// value is the ASCII domain name zero-padded to 32 bytes, readable in
// hex dumps without sacrificing any cryptographic property.
var dedupDomainKey = [32]byte{
	'p', 'a', 'v', 'i', 'l', 'i', 'o', 'n', '.',
	'n', 'o', 't', 'i', 'f', 'y', '.',
	'd', 'e', 'd', 'u', 'p',
}

// PayloadFingerprint computes the dedup fingerprint over the canonical
// target string and the payload's display strings. Two payloads with
// the same destination, title, and body are the same logical
// notification no matter which provider delivered them.
func PayloadFingerprint(payload Payload, target Target) Fingerprint {
	hasher, err := blake3.NewKeyed(dedupDomainKey[:])
	if err != nil {
		panic("navigate: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	io.WriteString(hasher, target.String())
	hasher.Write([]byte{0})
	io.WriteString(hasher, payload.Title)
	hasher.Write([]byte{0})
	io.WriteString(hasher, payload.Body)

	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// dedup suppresses duplicate foreground presentations. Entries are
// evicted lazily on observe, so the map never outgrows the
// notification rate of one window.
type dedup struct {
	clock  clock.Clock
	window time.Duration

	mu   sync.Mutex
	seen map[Fingerprint]time.Time
}

func newDedup(clk clock.Clock, window time.Duration) *dedup {
	return &dedup{
		clock:  clk,
		window: window,
		seen:   make(map[Fingerprint]time.Time),
	}
}

// observe records the fingerprint and reports whether it was already
// seen within the window. The window is anchored at first sight: a
// stream of duplicates does not extend it.
func (d *dedup) observe(fingerprint Fingerprint) bool {
	now := d.clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for seen, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, seen)
		}
	}

	if _, duplicate := d.seen[fingerprint]; duplicate {
		return true
	}
	d.seen[fingerprint] = now
	return false
}
