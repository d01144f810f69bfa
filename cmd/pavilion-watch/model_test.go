// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/navigate"
)

// testModel builds a ready model backed by a source pointed at a
// socket that doesn't exist. Update tests never execute the returned
// commands, so the source's failing dials stay in the background.
func testModel(t *testing.T) model {
	t.Helper()
	source := newDaemonSource(filepath.Join(t.TempDir(), "absent.sock"), slog.New(slog.DiscardHandler))
	t.Cleanup(source.Close)

	m := newModel(source)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(model)
}

func deliver(t *testing.T, m model, evt event) model {
	t.Helper()
	updated, _ := m.Update(sourceEventMsg{event: evt})
	return updated.(model)
}

func pressKey(t *testing.T, m model, r rune) model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return updated.(model)
}

// feedRecords builds count records with distinct, deterministic IDs,
// newest-first like the daemon returns them.
func feedRecords(count int) []feed.Record {
	records := make([]feed.Record, count)
	for index := range records {
		records[index] = feed.Record{
			ID:         ulid.ULID{15: byte(index + 1)},
			Provider:   "chat",
			Title:      fmt.Sprintf("notification %d", index+1),
			Target:     "app://chat/channel?channel=club-lounge",
			ReceivedAt: time.Date(2026, 2, 7, 19, 30, index, 0, time.UTC),
		}
	}
	return records
}

func TestViewBeforeFirstWindowSize(t *testing.T) {
	source := newDaemonSource(filepath.Join(t.TempDir(), "absent.sock"), slog.New(slog.DiscardHandler))
	t.Cleanup(source.Close)

	m := newModel(source)
	if m.View() != "Connecting..." {
		t.Errorf("View() before sizing = %q, want the connecting placeholder", m.View())
	}
}

func TestQuitKeys(t *testing.T) {
	m := testModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("q produced %T, want tea.QuitMsg", cmd())
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("ctrl+c produced %T, want tea.QuitMsg", cmd())
	}
}

func TestCursorMovement(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFeed, records: feedRecords(5)})

	if m.cursor != 0 {
		t.Fatalf("initial cursor = %d, want 0", m.cursor)
	}

	m = pressKey(t, m, 'j')
	m = pressKey(t, m, 'j')
	if m.cursor != 2 {
		t.Errorf("cursor after jj = %d, want 2", m.cursor)
	}

	m = pressKey(t, m, 'k')
	if m.cursor != 1 {
		t.Errorf("cursor after k = %d, want 1", m.cursor)
	}

	m = pressKey(t, m, 'G')
	if m.cursor != 4 {
		t.Errorf("cursor after G = %d, want 4", m.cursor)
	}

	m = pressKey(t, m, 'g')
	if m.cursor != 0 || m.scrollOffset != 0 {
		t.Errorf("after g: cursor = %d offset = %d, want 0 0", m.cursor, m.scrollOffset)
	}

	// Clamped at the top.
	m = pressKey(t, m, 'k')
	if m.cursor != 0 {
		t.Errorf("cursor after k at top = %d, want 0", m.cursor)
	}
}

func TestScrollFollowsCursor(t *testing.T) {
	m := testModel(t)
	// Height 12 leaves 5 visible feed rows after the chrome.
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	m = updated.(model)
	m = deliver(t, m, event{kind: eventFeed, records: feedRecords(10)})

	m = pressKey(t, m, 'G')
	if m.cursor != 9 {
		t.Fatalf("cursor after G = %d, want 9", m.cursor)
	}
	if m.scrollOffset != 5 {
		t.Errorf("offset after G = %d, want 5", m.scrollOffset)
	}

	m = pressKey(t, m, 'g')
	if m.scrollOffset != 0 {
		t.Errorf("offset after g = %d, want 0", m.scrollOffset)
	}
}

func TestFeedShrinkClampsCursor(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFeed, records: feedRecords(5)})
	m = pressKey(t, m, 'G')

	m = deliver(t, m, event{kind: eventFeed, records: feedRecords(2)})
	if m.cursor != 1 {
		t.Errorf("cursor after shrink = %d, want 1", m.cursor)
	}
}

func TestFeedArrivalIgnitesHeat(t *testing.T) {
	m := testModel(t)

	m = deliver(t, m, event{kind: eventFeed, records: feedRecords(2)})
	if !m.feedLoaded {
		t.Fatal("first feed event should mark the feed loaded")
	}
	if m.heat.hasHot(time.Now()) {
		t.Error("the initial load should not glow")
	}

	grown := feedRecords(3)
	updated, cmd := m.Update(sourceEventMsg{event: event{kind: eventFeed, records: grown}})
	m = updated.(model)

	now := time.Now()
	if !m.heat.hot(grown[2].ID.String(), now) {
		t.Error("the new record should glow")
	}
	if m.heat.hot(grown[0].ID.String(), now) {
		t.Error("records from the initial load should not glow")
	}
	if !m.tickRunning {
		t.Error("a glowing record should start the heat tick")
	}
	if cmd == nil {
		t.Error("expected a batched command carrying the heat tick")
	}
}

func TestHeatTickStopsWhenEverythingCooled(t *testing.T) {
	m := testModel(t)

	m.heat.ignite("cold", time.Now().Add(-2*heatDecayDuration))
	m.tickRunning = true
	updated, cmd := m.Update(heatTickMsg{})
	m = updated.(model)
	if m.tickRunning {
		t.Error("tick should stop once nothing is hot")
	}
	if cmd != nil {
		t.Error("no reschedule expected once nothing is hot")
	}

	m.heat.ignite("fresh", time.Now())
	m.tickRunning = true
	_, cmd = m.Update(heatTickMsg{})
	if cmd == nil {
		t.Error("tick should reschedule while a record is hot")
	}
}

func TestStateFrameUpdatesSession(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFrame, frame: streamFrame{
		Type:   "state",
		State:  "error",
		Reason: "stream failed",
		Error:  "dial tcp: timeout",
	}})

	if m.sessionState != "error" || m.sessionReason != "stream failed" {
		t.Errorf("session = %q reason = %q, want error / stream failed", m.sessionState, m.sessionReason)
	}

	view := m.View()
	for _, want := range []string{"error", "stream failed", "dial tcp: timeout"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestRegistrationFrameReplacesTable(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFrame, frame: streamFrame{
		Type: "registration",
		Registrations: []registrationStatus{
			{Provider: "chat", Registered: true},
			{Provider: "marketing", Registered: false, Error: "register device: 503"},
		},
	}})

	if len(m.registrations) != 2 {
		t.Fatalf("registrations = %d entries, want 2", len(m.registrations))
	}

	view := m.View()
	for _, want := range []string{"chat", "marketing", "register device: 503"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestStatusSnapshotFillsStatusBlock(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventStatus, status: &statusSnapshot{
		State:      "open",
		Generation: 3,
		SignedIn:   true,
		Device: deviceInfo{
			Platform:   "ios",
			HasToken:   true,
			Permission: "granted",
		},
		Registrations: []registrationStatus{{Provider: "chat", Registered: true}},
		FeedSize:      2,
		UptimeSeconds: 42,
	}})

	if m.sessionState != "open" {
		t.Errorf("session state = %q, want open", m.sessionState)
	}
	if len(m.registrations) != 1 {
		t.Errorf("registrations = %d entries, want the snapshot's 1", len(m.registrations))
	}

	view := m.View()
	for _, want := range []string{"generation 3", "uptime 42s", "ios", "token present", "permission granted", "signed in"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestBannerFrameUpdatesActivity(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFrame, frame: streamFrame{
		Type:    "banner",
		Payload: &navigate.Payload{Provider: "chat", Title: "New message"},
	}})

	if m.activity != "banner New message" {
		t.Errorf("activity = %q, want banner New message", m.activity)
	}
	if !strings.Contains(m.View(), "banner New message") {
		t.Error("view should show the banner activity")
	}
}

func TestNavigateFrameUpdatesActivity(t *testing.T) {
	m := testModel(t)
	m = deliver(t, m, event{kind: eventFrame, frame: streamFrame{
		Type: "navigate",
		Target: &navigate.Target{
			Path:   "chat/channel",
			Params: map[string]string{"channel": "club-lounge"},
		},
	}})

	want := "navigate app://chat/channel?channel=club-lounge"
	if m.activity != want {
		t.Errorf("activity = %q, want %q", m.activity, want)
	}
}

func TestLinkEventsDriveHeaderAndHelp(t *testing.T) {
	m := testModel(t)

	m = deliver(t, m, event{kind: eventLink, link: linkBackoff, linkErr: "dial unix: no such file"})
	if m.link != linkBackoff {
		t.Fatalf("link = %q, want backoff", m.link)
	}
	view := m.View()
	if !strings.Contains(view, "backoff") {
		t.Error("view should show the backoff phase")
	}
	if !strings.Contains(view, "reconnecting: dial unix: no such file") {
		t.Error("view should surface the reconnect error")
	}

	m = deliver(t, m, event{kind: eventLink, link: linkLive})
	if m.linkErr != "" {
		t.Error("a live link event should clear the stale error")
	}
	if !strings.Contains(m.View(), "live") {
		t.Error("view should show the live phase")
	}
}

func TestLogNoticeAppearsAndFades(t *testing.T) {
	m := testModel(t)

	updated, cmd := m.Update(logRecordMsg{summary: "status fetch failed (error=timeout)", isError: true})
	m = updated.(model)
	if cmd == nil {
		t.Fatal("a log notice should schedule its fade")
	}
	if !strings.Contains(m.View(), "status fetch failed") {
		t.Error("view should show the log notice")
	}

	updated, _ = m.Update(logFadeMsg{})
	m = updated.(model)
	if strings.Contains(m.View(), "status fetch failed") {
		t.Error("the notice should clear after the fade")
	}
}

func TestFeedPaneRendersRecords(t *testing.T) {
	m := testModel(t)

	view := m.View()
	if !strings.Contains(view, "loading") {
		t.Error("view should say the feed is loading before the first fetch")
	}

	m = deliver(t, m, event{kind: eventFeed, records: []feed.Record{}})
	if !strings.Contains(m.View(), "no notifications yet") {
		t.Error("an empty feed should render the placeholder")
	}

	m = deliver(t, m, event{kind: eventFeed, records: []feed.Record{{
		ID:         ulid.ULID{15: 9},
		Provider:   "marketing",
		Title:      "Summer tasting",
		Target:     "app://events/detail?event=42",
		ReceivedAt: time.Date(2026, 2, 7, 19, 30, 0, 0, time.UTC),
	}}})

	view = m.View()
	for _, want := range []string{"Summer tasting", "marketing", "app://events/detail?event=42", "feed · 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}
