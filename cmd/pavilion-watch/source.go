// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavilion-club/pavilion/bridge"
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/navigate"
)

// Wire mirrors of the daemon's socket shapes. Defined here because the
// daemon's types live in its binary; the wire format is the contract,
// and the daemon only ever adds fields.

// streamFrame mirrors the daemon's subscribe stream frames.
type streamFrame struct {
	Type string `cbor:"type"`

	State  string `cbor:"state,omitempty"`
	Reason string `cbor:"reason,omitempty"`
	Error  string `cbor:"error,omitempty"`

	Target  *navigate.Target  `cbor:"target,omitempty"`
	Payload *navigate.Payload `cbor:"payload,omitempty"`

	Registrations []registrationStatus `cbor:"registrations,omitempty"`
}

// registrationStatus mirrors one provider's registration state.
type registrationStatus struct {
	Provider   string `cbor:"provider"`
	Registered bool   `cbor:"registered"`
	Error      string `cbor:"error,omitempty"`
}

// deviceInfo mirrors the device block of the status response. The
// daemon never puts the token value on the socket.
type deviceInfo struct {
	Platform   string `cbor:"platform"`
	HasToken   bool   `cbor:"has_token"`
	Permission string `cbor:"permission"`
}

// statusSnapshot mirrors the "status" response.
type statusSnapshot struct {
	State      string `cbor:"state"`
	Generation uint64 `cbor:"generation"`
	SignedIn   bool   `cbor:"signed_in"`

	Device        deviceInfo           `cbor:"device"`
	Registrations []registrationStatus `cbor:"registrations"`

	FeedSize      int     `cbor:"feed_size"`
	UptimeSeconds float64 `cbor:"uptime_seconds"`
}

// feedListResult mirrors the "feed.list" response, newest first.
type feedListResult struct {
	Records []feed.Record `cbor:"records"`
}

// Event kinds delivered by the source.
const (
	eventFrame  = "frame"  // a subscribe stream frame arrived
	eventLink   = "link"   // the watch's own connection changed phase
	eventStatus = "status" // a status snapshot fetch completed
	eventFeed   = "feed"   // a feed fetch completed
)

// Link phases for eventLink events.
const (
	linkConnecting = "connecting"
	linkLive       = "live"
	linkBackoff    = "backoff"
)

// event is one update from the background stream goroutine to the UI.
type event struct {
	kind string

	frame streamFrame // eventFrame

	link    string // eventLink
	linkErr string // eventLink: the error that ended the stream

	status *statusSnapshot // eventStatus

	records []feed.Record // eventFeed
}

// Backoff parameters for reconnection after stream disconnects.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// fetchTimeout bounds the one-shot status and feed calls.
const fetchTimeout = 10 * time.Second

// feedFetchLimit is how many feed records the watch keeps in view.
const feedFetchLimit = 100

// daemonSource feeds the UI from the daemon's control socket. A
// background goroutine holds the subscribe stream, reconnecting with
// exponential backoff, and fans everything it learns into the Events
// channel: stream frames, connection phases, and the results of the
// snapshot fetches issued on each connect.
type daemonSource struct {
	client *bridge.Client
	logger *slog.Logger
	events chan event

	ctx    context.Context
	cancel context.CancelFunc
}

// newDaemonSource starts the background stream goroutine immediately;
// call Close to shut it down.
func newDaemonSource(socketPath string, logger *slog.Logger) *daemonSource {
	source := &daemonSource{
		client: bridge.NewClient(socketPath),
		logger: logger,
		events: make(chan event, 64),
	}
	source.ctx, source.cancel = context.WithCancel(context.Background())
	go source.streamLoop(source.ctx)
	return source
}

// Events returns the channel the UI drains. Events are delivered in
// the order the source learned them.
func (source *daemonSource) Events() <-chan event {
	return source.events
}

// Close shuts down the background goroutine. Safe to call multiple
// times.
func (source *daemonSource) Close() {
	source.cancel()
}

// Refresh re-fetches the status snapshot and the feed without waiting
// for a stream event. Bound to the r key.
func (source *daemonSource) Refresh() {
	go source.fetchStatus(source.ctx)
	go source.fetchFeed(source.ctx)
}

// streamLoop manages the subscribe connection lifecycle with
// exponential backoff reconnection. Runs until the context is
// cancelled.
func (source *daemonSource) streamLoop(ctx context.Context) {
	backoff := initialBackoff
	for {
		source.emit(ctx, event{kind: eventLink, link: linkConnecting})
		err := source.runStream(ctx)
		if ctx.Err() != nil {
			return
		}
		source.logger.Warn("subscribe stream disconnected",
			"error", err,
			"backoff", backoff,
		)
		source.emit(ctx, event{kind: eventLink, link: linkBackoff, linkErr: err.Error()})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// runStream holds a single subscribe connection and forwards its
// frames until the connection ends or the context is cancelled.
// Returns the error that ended the stream.
func (source *daemonSource) runStream(ctx context.Context) error {
	stream, err := source.client.Subscribe(ctx, "subscribe", nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	source.emit(ctx, event{kind: eventLink, link: linkLive})
	source.logger.Info("subscribe stream connected")

	// The stream opens with a snapshot of state and registrations;
	// the status and feed fetches fill in what frames don't carry
	// (generation, device, uptime, the feed contents).
	go source.fetchStatus(ctx)
	go source.fetchFeed(ctx)

	for {
		var frame streamFrame
		if err := stream.Next(&frame); err != nil {
			return err
		}

		// A banner means the daemon archived a feed record before
		// broadcasting, so a refetch sees it.
		if frame.Type == "banner" {
			go source.fetchFeed(ctx)
		}

		source.emit(ctx, event{kind: eventFrame, frame: frame})
	}
}

// fetchStatus retrieves the full status snapshot. Failures are logged
// and skipped; the next connect or manual refresh tries again.
func (source *daemonSource) fetchStatus(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var status statusSnapshot
	if err := source.client.Call(callCtx, "status", nil, &status); err != nil {
		source.logger.Warn("status fetch failed", "error", err)
		return
	}
	source.emit(ctx, event{kind: eventStatus, status: &status})
}

// fetchFeed retrieves the recent feed records, newest first.
func (source *daemonSource) fetchFeed(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var result feedListResult
	if err := source.client.Call(callCtx, "feed.list", map[string]any{"limit": feedFetchLimit}, &result); err != nil {
		source.logger.Warn("feed fetch failed", "error", err)
		return
	}
	source.emit(ctx, event{kind: eventFeed, records: result.Records})
}

// emit delivers an event to the UI, blocking if the UI is behind. The
// watch would rather lag than drop a registration result.
func (source *daemonSource) emit(ctx context.Context, evt event) {
	select {
	case source.events <- evt:
	case <-ctx.Done():
	}
}
