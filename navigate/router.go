// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package navigate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavilion-club/pavilion/diag"
	"github.com/pavilion-club/pavilion/lib/clock"
)

// Dispatcher performs in-app navigation. The daemon's implementation
// forwards the target to the shell over the bridge.
type Dispatcher interface {
	Dispatch(target Target)
}

// Presenter shows a foreground notification as an in-app banner.
// target is the zero Target when the payload is not routable; the
// banner is still shown, a tap just goes nowhere.
type Presenter interface {
	PresentBanner(payload Payload, target Target)
}

// FeedRecorder archives delivered notifications in the member's inbox.
type FeedRecorder interface {
	RecordDelivery(payload Payload, target Target)
}

// RouterConfig holds configuration for creating a Router.
type RouterConfig struct {
	// Table is the route table targets are validated against. If nil,
	// the embedded table is used.
	Table *Table

	// Dispatcher receives targets to navigate to. Required.
	Dispatcher Dispatcher

	// Presenter receives foreground banners. Required.
	Presenter Presenter

	// Feed archives delivered notifications. Optional.
	Feed FeedRecorder

	// Clock drives the dedup window. If nil, the real clock is used.
	Clock clock.Clock

	// DedupWindow overrides DefaultDedupWindow when positive.
	DedupWindow time.Duration

	// Reporter receives parse failures for opened notifications. If
	// nil, diag.Discard is used.
	Reporter diag.Reporter

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Router decides what happens with each inbound notification payload:
// foreground deliveries are deduplicated and presented as banners,
// opened notifications dispatch their navigation target. Until the UI
// router reports ready, at most one opened target is held pending; a
// newer one replaces it, because the member's most recent tap is the
// intent that counts.
type Router struct {
	table      *Table
	dispatcher Dispatcher
	presenter  Presenter
	feed       FeedRecorder
	reporter   diag.Reporter
	logger     *slog.Logger
	dedup      *dedup

	mu      sync.Mutex
	ready   bool
	pending *Target
}

// NewRouter creates a notification router.
func NewRouter(config RouterConfig) (*Router, error) {
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("navigate: Dispatcher is required")
	}
	if config.Presenter == nil {
		return nil, fmt.Errorf("navigate: Presenter is required")
	}

	table := config.Table
	if table == nil {
		table = DefaultTable()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	window := config.DedupWindow
	if window <= 0 {
		window = DefaultDedupWindow
	}
	reporter := config.Reporter
	if reporter == nil {
		reporter = diag.Discard
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		table:      table,
		dispatcher: config.Dispatcher,
		presenter:  config.Presenter,
		feed:       config.Feed,
		reporter:   reporter,
		logger:     logger,
		dedup:      newDedup(clk, window),
	}, nil
}

// Parse extracts and validates the payload's navigation target against
// the router's table.
func (r *Router) Parse(payload Payload) (Target, error) {
	return r.table.Parse(payload)
}

// DeliverForeground handles a notification that arrived while the app
// was frontmost: suppress if a duplicate was presented within the
// dedup window, otherwise archive it to the feed and present a banner.
func (r *Router) DeliverForeground(payload Payload) {
	target, _ := r.table.Parse(payload)

	fingerprint := PayloadFingerprint(payload, target)
	if r.dedup.observe(fingerprint) {
		r.logger.Debug("duplicate notification suppressed",
			"fingerprint", fingerprint,
			"provider", payload.Provider)
		return
	}

	if r.feed != nil {
		r.feed.RecordDelivery(payload, target)
	}
	r.presenter.PresentBanner(payload, target)
	r.logger.Debug("foreground notification presented",
		"provider", payload.Provider,
		"routable", !target.IsZero())
}

// HandleOpened handles a notification the member tapped: dispatch its
// target now if the UI router is ready, otherwise hold it as the
// single pending target.
func (r *Router) HandleOpened(payload Payload) {
	target, err := r.table.Parse(payload)
	if err != nil {
		// The member tapped a notification and nothing will happen.
		// Report it: either a provider sent a bad payload or the
		// route table is missing an entry.
		r.logger.Warn("opened notification has no navigation target",
			"provider", payload.Provider)
		r.reporter.Report(diag.Record{
			Section:  "navigate",
			Action:   "parse",
			Provider: payload.Provider,
			Err:      err,
		})
		return
	}

	r.mu.Lock()
	if !r.ready {
		replaced := r.pending != nil
		r.pending = &target
		r.mu.Unlock()
		if replaced {
			r.logger.Info("pending navigation target replaced", "path", target.Path)
		} else {
			r.logger.Info("navigation target held until router ready", "path", target.Path)
		}
		return
	}
	r.mu.Unlock()

	r.dispatch(target)
}

// OnRouterReady marks the UI router ready and dispatches the pending
// target, if any, exactly once.
func (r *Router) OnRouterReady() {
	r.mu.Lock()
	r.ready = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pending != nil {
		r.dispatch(*pending)
	}
}

// OnRouterSuspended marks the UI router not ready (shell
// backgrounded). Targets opened from now on are held pending.
func (r *Router) OnRouterSuspended() {
	r.mu.Lock()
	r.ready = false
	r.mu.Unlock()
	r.logger.Debug("router suspended")
}

func (r *Router) dispatch(target Target) {
	// Params may carry payload-derived values; log the path only.
	r.logger.Info("dispatching navigation target", "path", target.Path)
	r.dispatcher.Dispatch(target)
}
