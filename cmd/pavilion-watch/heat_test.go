// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"
	"time"
)

func TestHeatIgniteAndDecay(t *testing.T) {
	t.Parallel()
	tracker := newHeatTracker()
	start := time.Now()

	tracker.ignite("record-1", start)
	if !tracker.hot("record-1", start) {
		t.Error("a record should be hot immediately after ignition")
	}
	if !tracker.hot("record-1", start.Add(heatDecayDuration-time.Millisecond)) {
		t.Error("a record should stay hot through the decay window")
	}
	if tracker.hot("record-1", start.Add(heatDecayDuration+time.Millisecond)) {
		t.Error("a record should cool after the decay window")
	}
}

func TestHeatUnknownRecordIsCold(t *testing.T) {
	t.Parallel()
	tracker := newHeatTracker()
	if tracker.hot("never-ignited", time.Now()) {
		t.Error("an unknown record should not be hot")
	}
}

func TestHeatReigniteResetsTimer(t *testing.T) {
	t.Parallel()
	tracker := newHeatTracker()
	start := time.Now()

	tracker.ignite("record-1", start)
	tracker.ignite("record-1", start.Add(3*time.Second))

	if !tracker.hot("record-1", start.Add(heatDecayDuration+time.Second)) {
		t.Error("re-ignition should restart the decay window")
	}
}

func TestHeatHasHotPrunesDecayedEntries(t *testing.T) {
	t.Parallel()
	tracker := newHeatTracker()
	start := time.Now()

	tracker.ignite("old", start)
	tracker.ignite("new", start.Add(time.Second))

	if !tracker.hasHot(start.Add(2 * time.Second)) {
		t.Fatal("both records should still be hot")
	}
	if len(tracker.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(tracker.entries))
	}

	// Past "old"'s window but inside "new"'s.
	later := start.Add(heatDecayDuration + 500*time.Millisecond)
	if !tracker.hasHot(later) {
		t.Fatal("the newer record should still be hot")
	}
	if len(tracker.entries) != 1 {
		t.Errorf("entries after pruning = %d, want 1", len(tracker.entries))
	}

	if tracker.hasHot(start.Add(heatDecayDuration + 2*time.Second)) {
		t.Error("nothing should be hot after both windows pass")
	}
	if len(tracker.entries) != 0 {
		t.Errorf("entries after full decay = %d, want 0", len(tracker.entries))
	}
}
