// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/diag"
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/lib/clock"
	"github.com/pavilion-club/pavilion/lib/config"
	"github.com/pavilion-club/pavilion/navigate"
	"github.com/pavilion-club/pavilion/platform"
	"github.com/pavilion-club/pavilion/push"
)

// channelCreator is the subset of the chat client the chat.channel
// action uses.
type channelCreator interface {
	CreateDirectChannel(ctx context.Context, participantIDs ...string) (*chat.Channel, error)
}

var _ channelCreator = (*chat.Client)(nil)

// Core is the assembled client core: the long-lived components plus
// the daemon's own state, the signed-in member and the subscribe
// stream registry.
type Core struct {
	platform platform.Kind
	clock    clock.Clock
	logger   *slog.Logger

	manager      *chat.Manager
	orchestrator *push.Orchestrator
	router       *navigate.Router
	channels     channelCreator
	inbox        *feed.Feed
	device       *platform.Device

	startedAt time.Time

	mu          sync.Mutex
	member      *identity.Identity
	subscribers []*subscriber
}

// coreDeps are the constructed components assembleCore wires together.
// run() passes the real platform clients; tests script the
// interface-typed fields.
type coreDeps struct {
	platform    platform.Kind
	clock       clock.Clock
	logger      *slog.Logger
	reporter    diag.Reporter
	tokens      chat.TokenIssuer
	dialer      chat.Dialer
	channels    channelCreator
	providers   []push.Provider
	table       *navigate.Table
	dedupWindow time.Duration
	timing      config.Timing
	inbox       *feed.Feed
	device      *platform.Device
}

// assembleCore builds the Core and wires the component graph: manager
// state changes fan out to stream subscribers and drive the push
// orchestrator, device changes feed the orchestrator's inputs, and the
// router's dispatch, banner, and archive surfaces land on the Core
// itself.
//
// ctx outlives the call: it bounds the network calls of evaluation
// rounds triggered by state and device changes.
func assembleCore(ctx context.Context, deps coreDeps) (*Core, error) {
	core := &Core{
		platform:  deps.platform,
		clock:     deps.clock,
		logger:    deps.logger,
		channels:  deps.channels,
		inbox:     deps.inbox,
		device:    deps.device,
		startedAt: deps.clock.Now(),
	}

	manager, err := chat.NewManager(chat.ManagerConfig{
		Tokens:          deps.tokens,
		Dialer:          deps.dialer,
		Identity:        core.currentMember,
		Clock:           deps.clock,
		Logger:          deps.logger.With("component", "chat"),
		Reporter:        deps.reporter,
		RetryAttempts:   deps.timing.RetryAttempts,
		RetryDelay:      deps.timing.RetryDelay,
		RefreshSkew:     deps.timing.RefreshSkew,
		RefreshInterval: deps.timing.RefreshInterval,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := push.NewOrchestrator(push.Config{
		Providers:   deps.providers,
		Platform:    deps.platform,
		Reporter:    deps.reporter,
		Logger:      deps.logger.With("component", "push"),
		OnEvaluated: core.broadcastRegistrations,
	})

	router, err := navigate.NewRouter(navigate.RouterConfig{
		Table:       deps.table,
		Dispatcher:  core,
		Presenter:   core,
		Feed:        core,
		Clock:       deps.clock,
		DedupWindow: deps.dedupWindow,
		Reporter:    deps.reporter,
		Logger:      deps.logger.With("component", "navigate"),
	})
	if err != nil {
		return nil, err
	}

	core.manager = manager
	core.orchestrator = orchestrator
	core.router = router

	// The orchestrator hop runs on its own goroutine: state observers
	// execute under the manager's lock, and an evaluation round makes
	// network calls. The mailbox keeps the hops ordered; a bare
	// goroutine per transition could deliver an old state after a
	// newer one and resurrect a torn-down registration.
	states := newStateMailbox()
	manager.OnStateChange(func(change chat.StateChange) {
		core.broadcastState(change)
		states.put(change.Current)
	})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-states.ch:
				orchestrator.HandleChatState(ctx, state)
			}
		}
	}()

	deps.device.OnChange(func(snapshot platform.Snapshot) {
		orchestrator.UpdateDeviceToken(ctx, snapshot.Token)
		orchestrator.UpdatePermission(ctx, snapshot.Permission == platform.PermissionGranted)
	})

	return core, nil
}

// stateMailbox hands chat transitions from the manager's observer to
// the orchestrator goroutine. Capacity one, newest wins: the
// orchestrator acts on the current state, so an unconsumed
// intermediate state is dead weight once a newer one arrives.
type stateMailbox struct {
	ch chan chat.State
}

func newStateMailbox() *stateMailbox {
	return &stateMailbox{ch: make(chan chat.State, 1)}
}

// put replaces the pending state. Called only from manager observers,
// which are serialized, so the send after the drain cannot block.
func (m *stateMailbox) put(state chat.State) {
	select {
	case m.ch <- state:
		return
	default:
	}
	select {
	case <-m.ch:
	default:
	}
	m.ch <- state
}

// currentMember returns the signed-in member, or nil. It is the
// manager's identity source and runs under the manager's lock.
func (core *Core) currentMember() *identity.Identity {
	core.mu.Lock()
	defer core.mu.Unlock()
	return core.member
}

func (core *Core) setMember(member *identity.Identity) {
	core.mu.Lock()
	core.member = member
	core.mu.Unlock()
}

// feedWriteTimeout bounds the SQLite write when archiving a delivered
// notification.
const feedWriteTimeout = 5 * time.Second

var (
	_ navigate.Dispatcher   = (*Core)(nil)
	_ navigate.Presenter    = (*Core)(nil)
	_ navigate.FeedRecorder = (*Core)(nil)
)

// Dispatch forwards a navigation target to every connected shell as a
// navigate frame.
func (core *Core) Dispatch(target navigate.Target) {
	core.broadcast(coreFrame{Type: "navigate", Target: &target})
}

// PresentBanner forwards a foreground notification to every connected
// shell as a banner frame. The target is included when the payload is
// routable so a banner tap can navigate without a round trip.
func (core *Core) PresentBanner(payload navigate.Payload, target navigate.Target) {
	frame := coreFrame{Type: "banner", Payload: &payload}
	if !target.IsZero() {
		frame.Target = &target
	}
	core.broadcast(frame)
}

// RecordDelivery archives a delivered notification in the inbox. The
// router calls it synchronously on the delivery path, so failures are
// logged rather than propagated; a full disk must not block banners.
func (core *Core) RecordDelivery(payload navigate.Payload, target navigate.Target) {
	ctx, cancel := context.WithTimeout(context.Background(), feedWriteTimeout)
	defer cancel()

	if _, err := core.inbox.Add(ctx, feed.Entry{
		Provider: payload.Provider,
		Title:    payload.Title,
		Body:     payload.Body,
		Target:   target.String(),
	}); err != nil {
		core.logger.Warn("archiving notification failed", "error", err)
	}
}
