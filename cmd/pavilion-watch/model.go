// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pavilion-club/pavilion/feed"
)

// sourceEventMsg wraps a source event for delivery through the
// bubbletea message loop.
type sourceEventMsg struct {
	event event
}

// heatTickMsg is sent periodically while any feed records are hot, so
// the arrival glow fades instead of snapping off.
type heatTickMsg struct{}

// model is the top-level bubbletea model for the watch: a status block
// (connection, session, device, push registrations) above a scrollable
// feed pane.
type model struct {
	source *daemonSource
	theme  theme
	keys   keyMap

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	// The watch's own connection to the daemon.
	link    string
	linkErr string

	// Session state, from stream frames and status snapshots.
	sessionState  string
	sessionReason string
	sessionError  string

	// Latest status snapshot; nil until the first fetch completes.
	status *statusSnapshot

	registrations []registrationStatus

	// Feed pane state. feedLoaded distinguishes "no fetch yet" from a
	// genuinely empty feed, so the first fetch doesn't flash every row.
	records      []feed.Record
	feedLoaded   bool
	cursor       int
	scrollOffset int

	// Last delivery observed on the stream, shown in the feed rule.
	activity   string
	activityAt time.Time

	heat        *heatTracker
	tickRunning bool

	// Log notice routed from the background goroutine; cleared after
	// a delay.
	logNotice      string
	logNoticeError bool
}

func newModel(source *daemonSource) model {
	return model{
		source:       source,
		theme:        defaultTheme,
		keys:         defaultKeyMap,
		link:         linkConnecting,
		sessionState: "closed",
		heat:         newHeatTracker(),
	}
}

// Init implements tea.Model. Starts draining the source's events.
func (m model) Init() tea.Cmd {
	return listenForEvent(m.source.Events())
}

// listenForEvent returns a tea.Cmd that blocks until an event arrives
// on the source channel, then delivers it as a sourceEventMsg.
func listenForEvent(events <-chan event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return sourceEventMsg{event: evt}
	}
}

// scheduleHeatTick returns a tea.Cmd that sends a heatTickMsg after
// the glow animation interval.
func scheduleHeatTick() tea.Cmd {
	return tea.Tick(heatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

// Update implements tea.Model.
func (m model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(message, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			m.ensureCursorVisible()

		case key.Matches(message, m.keys.Down):
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
			m.ensureCursorVisible()

		case key.Matches(message, m.keys.Home):
			m.cursor = 0
			m.scrollOffset = 0

		case key.Matches(message, m.keys.End):
			if len(m.records) > 0 {
				m.cursor = len(m.records) - 1
			}
			m.ensureCursorVisible()

		case key.Matches(message, m.keys.Refresh):
			m.source.Refresh()
		}

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.ready = true
		m.ensureCursorVisible()

	case sourceEventMsg:
		return m.handleSourceEvent(message.event)

	case heatTickMsg:
		if m.heat.hasHot(time.Now()) {
			return m, scheduleHeatTick()
		}
		m.tickRunning = false

	case logRecordMsg:
		m.logNotice = message.summary
		m.logNoticeError = message.isError
		return m, tea.Tick(logFadeDelay, func(time.Time) tea.Msg {
			return logFadeMsg{}
		})

	case logFadeMsg:
		m.logNotice = ""
	}

	return m, nil
}

// handleSourceEvent folds one source event into the model and re-arms
// the event listener.
func (m model) handleSourceEvent(evt event) (tea.Model, tea.Cmd) {
	commands := []tea.Cmd{listenForEvent(m.source.Events())}

	switch evt.kind {
	case eventLink:
		m.link = evt.link
		m.linkErr = evt.linkErr

	case eventFrame:
		m.applyFrame(evt.frame)

	case eventStatus:
		m.status = evt.status
		m.sessionState = evt.status.State
		m.registrations = evt.status.Registrations

	case eventFeed:
		now := time.Now()
		if m.feedLoaded {
			known := make(map[string]bool, len(m.records))
			for _, record := range m.records {
				known[record.ID.String()] = true
			}
			for _, record := range evt.records {
				if !known[record.ID.String()] {
					m.heat.ignite(record.ID.String(), now)
				}
			}
		}
		m.records = evt.records
		m.feedLoaded = true
		m.clampCursor()

		if !m.tickRunning && m.heat.hasHot(now) {
			m.tickRunning = true
			commands = append(commands, scheduleHeatTick())
		}
	}

	return m, tea.Batch(commands...)
}

// applyFrame folds one subscribe stream frame into the model.
func (m *model) applyFrame(frame streamFrame) {
	switch frame.Type {
	case "state":
		m.sessionState = frame.State
		m.sessionReason = frame.Reason
		m.sessionError = frame.Error

	case "registration":
		m.registrations = frame.Registrations

	case "banner":
		line := "banner"
		if frame.Payload != nil && frame.Payload.Title != "" {
			line += " " + frame.Payload.Title
		}
		m.activity = line
		m.activityAt = time.Now()

	case "navigate":
		if frame.Target != nil {
			m.activity = "navigate " + frame.Target.String()
			m.activityAt = time.Now()
		}

	case "heartbeat":
		// Liveness only.
	}
}

// clampCursor keeps the cursor inside the records after a feed
// replacement shrinks the list.
func (m *model) clampCursor() {
	if m.cursor >= len(m.records) {
		m.cursor = len(m.records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

// ensureCursorVisible adjusts scrollOffset so the cursor is within the
// visible window.
func (m *model) ensureCursorVisible() {
	visible := m.visibleHeight()
	if visible <= 0 {
		return
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	maxOffset := len(m.records) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

// visibleHeight returns the number of feed rows that fit between the
// chrome: header, session, device, push, and feed rule above; the
// separator and help bar below.
func (m model) visibleHeight() int {
	return m.height - 7
}

// View implements tea.Model.
func (m model) View() string {
	if !m.ready {
		return "Connecting..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderSession(),
		m.renderDevice(),
		m.renderRegistrations(),
		m.renderFeedRule(),
		m.renderFeed(),
		lipgloss.NewStyle().Foreground(m.theme.borderColor).Render(strings.Repeat("─", max(m.width, 1))),
		m.renderHelp(),
	}
	return strings.Join(sections, "\n")
}

// statusLabelWidth aligns the labels of the status block lines.
const statusLabelWidth = 11

func (m model) label(name string) string {
	return lipgloss.NewStyle().
		Foreground(m.theme.faintText).
		Render(fmt.Sprintf(" %-*s", statusLabelWidth-1, name))
}

// renderHeader renders the top rule with the watch's connection phase
// and, once known, the daemon's generation and uptime.
//
// Example: ─── PAVILION ── live ───────── generation 3 · uptime 42s ─
func (m model) renderHeader() string {
	sepStyle := lipgloss.NewStyle().Foreground(m.theme.borderColor)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(m.theme.headerForeground)

	linkColor := m.theme.statePending
	if m.link == linkLive {
		linkColor = m.theme.stateOpen
	} else if m.link == linkBackoff {
		linkColor = m.theme.stateError
	}
	linkStyle := lipgloss.NewStyle().Foreground(linkColor)

	left := sepStyle.Render("───") + " " + titleStyle.Render("PAVILION") + " " +
		sepStyle.Render("──") + " " + linkStyle.Render(m.link) + " "
	used := 3 + 1 + 8 + 1 + 2 + 1 + lipgloss.Width(m.link) + 1

	right := ""
	rightWidth := 0
	if m.status != nil {
		uptime := (time.Duration(m.status.UptimeSeconds) * time.Second).String()
		text := fmt.Sprintf("generation %d · uptime %s", m.status.Generation, uptime)
		right = " " + lipgloss.NewStyle().Foreground(m.theme.faintText).Render(text) + " " + sepStyle.Render("─")
		rightWidth = 1 + lipgloss.Width(text) + 2
	}

	fill := m.width - used - rightWidth
	if fill < 1 {
		fill = 1
	}
	return left + sepStyle.Render(strings.Repeat("─", fill)) + right
}

// renderSession renders the chat session line: state, reason, error,
// and whether a member is signed in.
func (m model) renderSession() string {
	stateStyle := lipgloss.NewStyle().Foreground(m.theme.stateColor(m.sessionState))
	faint := lipgloss.NewStyle().Foreground(m.theme.faintText)

	line := m.label("session") + stateStyle.Render(m.sessionState)
	if m.sessionReason != "" {
		line += faint.Render(" (" + m.sessionReason + ")")
	}
	if m.sessionError != "" {
		line += " " + lipgloss.NewStyle().Foreground(m.theme.stateError).Render(truncate(m.sessionError, 60))
	}

	if m.status != nil {
		member := "signed out"
		if m.status.SignedIn {
			member = "signed in"
		}
		line += faint.Render("  ·  ") + lipgloss.NewStyle().Foreground(m.theme.normalText).Render(member)
	}
	return line
}

// renderDevice renders the device line: platform, token presence, and
// notification permission. Shows a placeholder until the first status
// snapshot arrives.
func (m model) renderDevice() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.faintText)
	normal := lipgloss.NewStyle().Foreground(m.theme.normalText)

	if m.status == nil {
		return m.label("device") + faint.Render("—")
	}

	token := "token absent"
	if m.status.Device.HasToken {
		token = "token present"
	}
	return m.label("device") + normal.Render(m.status.Device.Platform) +
		faint.Render("  ·  ") + normal.Render(token) +
		faint.Render("  ·  ") + normal.Render("permission "+m.status.Device.Permission)
}

// renderRegistrations renders one line with every provider's
// registration state: ✓ registered, – unregistered, ✗ failed.
func (m model) renderRegistrations() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.faintText)
	if len(m.registrations) == 0 {
		return m.label("push") + faint.Render("—")
	}

	parts := make([]string, 0, len(m.registrations))
	for _, registration := range m.registrations {
		providerStyle := lipgloss.NewStyle().Foreground(m.theme.providerColor(registration.Provider))

		mark := lipgloss.NewStyle().Foreground(m.theme.stateOpen).Render("✓")
		if !registration.Registered {
			mark = lipgloss.NewStyle().Foreground(m.theme.stateClosed).Render("–")
		}
		part := providerStyle.Render(registration.Provider) + " " + mark
		if registration.Error != "" {
			part = providerStyle.Render(registration.Provider) + " " +
				lipgloss.NewStyle().Foreground(m.theme.stateError).Render("✗ "+truncate(registration.Error, 48))
		}
		parts = append(parts, part)
	}
	return m.label("push") + strings.Join(parts, faint.Render("   "))
}

// renderFeedRule renders the rule separating the status block from the
// feed pane, with the record count on the left and the last stream
// activity on the right.
//
// Example: ── feed · 12 ───────────── banner New message 15:04:05 ─
func (m model) renderFeedRule() string {
	sepStyle := lipgloss.NewStyle().Foreground(m.theme.borderColor)
	faint := lipgloss.NewStyle().Foreground(m.theme.faintText)

	count := "empty"
	if !m.feedLoaded {
		count = "loading"
	} else if len(m.records) > 0 {
		count = fmt.Sprintf("%d", len(m.records))
	}
	leftText := "feed · " + count
	left := sepStyle.Render("──") + " " + faint.Render(leftText) + " "
	used := 2 + 1 + lipgloss.Width(leftText) + 1

	right := ""
	rightWidth := 0
	if m.activity != "" {
		text := truncate(m.activity, 48) + " " + m.activityAt.Format("15:04:05")
		right = " " + faint.Render(text) + " " + sepStyle.Render("─")
		rightWidth = 1 + lipgloss.Width(text) + 2
	}

	fill := m.width - used - rightWidth
	if fill < 1 {
		fill = 1
	}
	return left + sepStyle.Render(strings.Repeat("─", fill)) + right
}

// renderFeed renders the scrollable feed pane with a right scrollbar.
func (m model) renderFeed() string {
	visible := m.visibleHeight()
	if visible < 0 {
		visible = 0
	}
	rowWidth := m.width - 1

	now := time.Now()
	var rows []string
	for index := m.scrollOffset; index < m.scrollOffset+visible && index < len(m.records); index++ {
		rows = append(rows, m.renderFeedRow(m.records[index], index == m.cursor, rowWidth, now))
	}

	if len(rows) == 0 && visible > 0 {
		placeholder := "no notifications yet"
		if !m.feedLoaded {
			placeholder = "loading feed..."
		}
		rows = append(rows, lipgloss.NewStyle().
			Foreground(m.theme.faintText).
			Render("  "+placeholder))
	}

	// Pad empty rows so the pane keeps its height.
	emptyStyle := lipgloss.NewStyle().Width(rowWidth)
	for len(rows) < visible {
		rows = append(rows, emptyStyle.Render(""))
	}

	scrollbar := renderScrollbar(m.theme, visible, len(m.records), visible, m.scrollOffset)

	contentStyle := lipgloss.NewStyle().Width(rowWidth).Height(visible)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		contentStyle.Render(strings.Join(rows, "\n")),
		scrollbar,
	)
}

// renderFeedRow renders one feed record: arrival time, provider badge,
// title, and the deep-link target.
func (m model) renderFeedRow(record feed.Record, selected bool, rowWidth int, now time.Time) string {
	received := record.ReceivedAt.Local().Format("15:04:05")

	// Column budget: time 8, gaps, provider 9; the title gets 60% of
	// what remains and the target the rest.
	remaining := rowWidth - 8 - 2 - 9 - 2
	if remaining < 16 {
		remaining = 16
	}
	titleWidth := remaining * 3 / 5
	targetWidth := remaining - titleWidth - 2

	title := truncate(record.Title, titleWidth)
	target := ""
	if targetWidth > 4 {
		target = truncate(record.Target, targetWidth)
	}

	if selected {
		plain := fmt.Sprintf(" %s  %-9s  %-*s  %s", received, record.Provider, titleWidth, title, target)
		return lipgloss.NewStyle().
			Background(m.theme.selectedBackground).
			Foreground(m.theme.selectedForeground).
			Width(rowWidth).
			MaxWidth(rowWidth).
			Render(plain)
	}

	row := " " + lipgloss.NewStyle().Foreground(m.theme.faintText).Render(received) +
		"  " + lipgloss.NewStyle().Foreground(m.theme.providerColor(record.Provider)).Render(fmt.Sprintf("%-9s", record.Provider)) +
		"  " + lipgloss.NewStyle().Foreground(m.theme.normalText).Render(fmt.Sprintf("%-*s", titleWidth, title)) +
		"  " + lipgloss.NewStyle().Foreground(m.theme.faintText).Render(target)

	if m.heat.hot(record.ID.String(), now) {
		row = lipgloss.NewStyle().
			Background(m.theme.hotAccent).
			Width(rowWidth).
			MaxWidth(rowWidth).
			Render(row)
	}
	return row
}

// renderHelp renders the bottom help bar: key hints, list position,
// reconnect state, and any routed log notice.
func (m model) renderHelp() string {
	style := lipgloss.NewStyle().Foreground(m.theme.helpText)

	help := " q quit  j/k move  g/G top/bottom  r refresh"

	if len(m.records) > 0 {
		help += fmt.Sprintf("  %d/%d", m.cursor+1, len(m.records))
	}

	out := style.Render(help)

	if m.link == linkBackoff && m.linkErr != "" {
		out += "  " + lipgloss.NewStyle().
			Foreground(m.theme.statePending).
			Bold(true).
			Render("reconnecting: "+truncate(m.linkErr, 48))
	}

	if m.logNotice != "" {
		noticeColor := m.theme.statePending
		if m.logNoticeError {
			noticeColor = m.theme.stateError
		}
		out += "  " + lipgloss.NewStyle().
			Foreground(noticeColor).
			Render(truncate(m.logNotice, 64))
	}

	return out
}

// truncate shortens s to at most maxLength characters, appending "..."
// when it cuts.
func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
