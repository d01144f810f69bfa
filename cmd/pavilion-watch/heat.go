// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "time"

// heatDecayDuration is how long a feed record glows after arriving.
const heatDecayDuration = 5 * time.Second

// heatTickInterval is the re-render interval while any records are
// hot, so the glow fades instead of snapping off.
const heatTickInterval = 500 * time.Millisecond

// heatTracker maps feed record IDs to arrival timestamps for the
// new-record glow. Each arrival ignites a record, which stays hot for
// heatDecayDuration.
type heatTracker struct {
	entries map[string]time.Time
}

func newHeatTracker() *heatTracker {
	return &heatTracker{entries: make(map[string]time.Time)}
}

// ignite records an arrival. Re-igniting an already-hot record resets
// its timer.
func (tracker *heatTracker) ignite(recordID string, now time.Time) {
	tracker.entries[recordID] = now
}

// hot reports whether a record is still within its glow window.
func (tracker *heatTracker) hot(recordID string, now time.Time) bool {
	ignition, exists := tracker.entries[recordID]
	return exists && now.Sub(ignition) < heatDecayDuration
}

// hasHot reports whether any record is still glowing, meaning the tick
// timer should keep running. Fully decayed entries are pruned.
func (tracker *heatTracker) hasHot(now time.Time) bool {
	anyHot := false
	for recordID, ignition := range tracker.entries {
		if now.Sub(ignition) < heatDecayDuration {
			anyHot = true
			continue
		}
		delete(tracker.entries, recordID)
	}
	return anyHot
}
