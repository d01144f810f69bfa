// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pavilion-club/pavilion/diag"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/lib/clock"
)

// Default lifecycle tuning, overridable through ManagerConfig.
const (
	// DefaultRetryAttempts bounds transient-failure retries per
	// network step during initialization. Exhausting the budget lands
	// in StateError; only an explicit Retry leaves it.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the fixed wait between attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultRefreshSkew is how long before credential expiry a
	// refresh becomes due.
	DefaultRefreshSkew = 5 * time.Minute

	// DefaultRefreshInterval is the period of the refresh ticker that
	// runs while the session is open.
	DefaultRefreshInterval = 30 * time.Second
)

// ErrNoIdentity is returned by Initialize when no member is signed in.
var ErrNoIdentity = errors.New("chat: no signed-in identity")

// ErrSuperseded is returned when a disconnect (or a newer session)
// overtook the operation while its network call was in flight. The
// operation's result was discarded; the session state already reflects
// whatever superseded it.
var ErrSuperseded = errors.New("chat: superseded by disconnect")

// TokenIssuer fetches session credentials. *Client implements it;
// tests script it.
type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, identityID, nickname string) (*Credential, error)
}

var _ TokenIssuer = (*Client)(nil)

// IdentitySource returns the currently signed-in member, or nil. The
// Manager reads it at the start of each initialize and refresh.
type IdentitySource func() *identity.Identity

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	// Tokens issues session credentials. Required.
	Tokens TokenIssuer
	// Dialer opens live streams. Required.
	Dialer Dialer
	// Identity supplies the signed-in member. Required.
	Identity IdentitySource
	// Clock is the time source. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Reporter receives failure records. If nil, reports are dropped.
	Reporter diag.Reporter

	// RetryAttempts, RetryDelay, RefreshSkew, and RefreshInterval
	// override the package defaults when positive.
	RetryAttempts   int
	RetryDelay      time.Duration
	RefreshSkew     time.Duration
	RefreshInterval time.Duration
}

// Manager owns the chat session lifecycle: Closed until an explicit
// Initialize, then Initializing → Connecting → Open, with credential
// refresh while open and guaranteed teardown on Disconnect.
//
// All exported methods are safe for concurrent use.
type Manager struct {
	tokens   TokenIssuer
	dialer   Dialer
	identity IdentitySource
	clock    clock.Clock
	logger   *slog.Logger
	reporter diag.Reporter

	retryAttempts   int
	retryDelay      time.Duration
	refreshSkew     time.Duration
	refreshInterval time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	credential *Credential
	stream     Stream
	sink       *streamSink
	observers  []func(StateChange)
	refreshing bool

	// stopRefresh cancels the refresh loop (and any refresh fetch it
	// has in flight). Non-nil exactly while state is StateOpen.
	stopRefresh context.CancelFunc
}

// NewManager creates a Manager in StateClosed. No network activity
// happens until Initialize.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Tokens == nil {
		return nil, fmt.Errorf("chat: ManagerConfig.Tokens is required")
	}
	if config.Dialer == nil {
		return nil, fmt.Errorf("chat: ManagerConfig.Dialer is required")
	}
	if config.Identity == nil {
		return nil, fmt.Errorf("chat: ManagerConfig.Identity is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := config.Reporter
	if reporter == nil {
		reporter = diag.Discard
	}

	manager := &Manager{
		tokens:          config.Tokens,
		dialer:          config.Dialer,
		identity:        config.Identity,
		clock:           clk,
		logger:          logger,
		reporter:        reporter,
		retryAttempts:   config.RetryAttempts,
		retryDelay:      config.RetryDelay,
		refreshSkew:     config.RefreshSkew,
		refreshInterval: config.RefreshInterval,
		state:           StateClosed,
	}
	if manager.retryAttempts <= 0 {
		manager.retryAttempts = DefaultRetryAttempts
	}
	if manager.retryDelay <= 0 {
		manager.retryDelay = DefaultRetryDelay
	}
	if manager.refreshSkew <= 0 {
		manager.refreshSkew = DefaultRefreshSkew
	}
	if manager.refreshInterval <= 0 {
		manager.refreshInterval = DefaultRefreshInterval
	}
	return manager, nil
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Generation returns the disconnect generation counter. Each
// Disconnect increments it; in-flight work compares it at continuation
// points to discard superseded results.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// OnStateChange registers an observer. Observers run synchronously in
// registration order after each transition, with the manager's lock
// held: they must not call back into the Manager. The StateChange
// carries everything an observer needs.
func (m *Manager) OnStateChange(observer func(StateChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// transitionLocked moves to a new state and notifies observers.
// Callers hold mu.
func (m *Manager) transitionLocked(current State, reason string, err error) {
	change := StateChange{
		Previous: m.state,
		Current:  current,
		Reason:   reason,
		Err:      err,
	}
	m.state = current
	m.logger.Info("session state",
		"previous", change.Previous,
		"current", change.Current,
		"reason", reason,
	)
	for _, observer := range slices.Clone(m.observers) {
		observer(change)
	}
}

// Initialize brings the session up: fetches a credential from the
// token endpoint, opens the live stream, and transitions to StateOpen.
// Idempotent: a no-op returning nil when initialization is already
// in flight or the session is open. Nothing calls Initialize
// automatically; the platform bills per connected identity, so the
// session comes up only when a member actually opens a chat surface.
//
// Transient failures (network, 429, 5xx) are retried on a fixed delay
// within a bounded budget; credential rejections and other client
// errors fail immediately. Either way the manager lands in StateError
// and stays there until Retry.
func (m *Manager) Initialize(ctx context.Context) error {
	// Read the identity source outside the lock; it may take locks of
	// its own.
	member := m.identity()

	m.mu.Lock()
	switch m.state {
	case StateInitializing, StateConnecting, StateOpen:
		// Coalesce: someone is already bringing the session up.
		m.mu.Unlock()
		return nil
	}
	if member == nil {
		m.mu.Unlock()
		return ErrNoIdentity
	}
	generation := m.generation
	m.transitionLocked(StateInitializing, "initialize", nil)
	m.mu.Unlock()

	var credential *Credential
	err := m.withRetry(ctx, "issue session token", func(ctx context.Context) error {
		var err error
		credential, err = m.tokens.IssueSessionToken(ctx, member.ID, member.GivenName)
		return err
	})
	if err != nil {
		return m.fail(generation, "issuing session token", err)
	}

	// Continuation point: a disconnect may have superseded this
	// attempt while the fetch was in flight.
	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		credential.Close()
		return ErrSuperseded
	}
	m.transitionLocked(StateConnecting, "credential issued", nil)
	m.mu.Unlock()

	sink := &streamSink{manager: m}
	var stream Stream
	err = m.withRetry(ctx, "open stream", func(ctx context.Context) error {
		var err error
		stream, err = m.dialer.DialStream(ctx, credential, sink)
		return err
	})
	if err != nil {
		credential.Close()
		return m.fail(generation, "opening stream", err)
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		stream.Close()
		credential.Close()
		return ErrSuperseded
	}
	m.credential = credential
	m.stream = stream
	m.sink = sink
	m.startRefreshLocked()
	m.transitionLocked(StateOpen, "stream open", nil)
	m.mu.Unlock()
	return nil
}

// Retry re-runs initialization from StateError with a fresh attempt
// budget. Exists as its own surface so an explicit member action is
// distinguishable from the original initialize in logs.
func (m *Manager) Retry(ctx context.Context) error {
	m.logger.Info("explicit session retry")
	return m.Initialize(ctx)
}

// Disconnect tears the session down from any state: cancels in-flight
// initialization and refresh work, closes the live stream, zeroes the
// credential, and transitions to StateClosed. Completions that were in
// flight observe the bumped generation and discard themselves, so
// after Disconnect returns the state stays StateClosed until the next
// explicit Initialize.
func (m *Manager) Disconnect(reason string) {
	m.mu.Lock()
	m.generation++
	stream := m.stream
	credential := m.credential
	m.stream = nil
	m.sink = nil
	m.credential = nil
	m.stopRefreshLocked()
	if m.state != StateClosed {
		m.transitionLocked(StateClosed, reason, nil)
	}
	m.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			m.logger.Debug("stream close", "error", err)
		}
	}
	if credential != nil {
		credential.Close()
	}
}

// RefreshIfNeeded fetches a new credential and rebinds the live
// session to it when the current credential is within the refresh skew
// of expiry. At most one refresh runs at a time; a no-op unless the
// session is open and a refresh is due. The session stays StateOpen
// throughout; consumers never observe a refresh.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateOpen || m.credential == nil || m.refreshing {
		m.mu.Unlock()
		return nil
	}
	if !m.credential.DueForRefresh(m.clock.Now(), m.refreshSkew) {
		m.mu.Unlock()
		return nil
	}
	m.refreshing = true
	sink := m.sink
	stream := m.stream
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	member := m.identity()
	if member == nil {
		// Identity cleared mid-session; a disconnect is imminent.
		return nil
	}

	credential, err := m.tokens.IssueSessionToken(ctx, member.ID, member.GivenName)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Stay open on the old credential; the next tick retries. If
		// the credential actually lapses the server closes the
		// stream, which lands in StateError through the usual path.
		m.logger.Warn("credential refresh failed", "error", err)
		m.reporter.Report(diag.Record{
			Section:     "chat",
			Action:      "refresh",
			HasIdentity: true,
			Err:         err,
		})
		return fmt.Errorf("chat: refreshing credential: %w", err)
	}

	// Prefer an in-place token swap; fall back to dialing a fresh
	// stream with the new credential when the swap write fails.
	var replacement Stream
	var replacementSink *streamSink
	if err := stream.SwapToken(credential.AccessToken); err != nil {
		m.logger.Info("token swap failed, redialing stream", "error", err)
		replacementSink = &streamSink{manager: m}
		replacement, err = m.dialer.DialStream(ctx, credential, replacementSink)
		if err != nil {
			credential.Close()
			if ctx.Err() != nil {
				return err
			}
			m.logger.Warn("stream redial failed", "error", err)
			m.reporter.Report(diag.Record{
				Section:     "chat",
				Action:      "refresh",
				HasIdentity: true,
				Err:         err,
			})
			return fmt.Errorf("chat: redialing stream: %w", err)
		}
	}

	// Continuation point: install the new credential (and stream)
	// only if this session epoch is still the live one.
	m.mu.Lock()
	if m.state != StateOpen || m.sink != sink {
		m.mu.Unlock()
		credential.Close()
		if replacement != nil {
			replacement.Close()
		}
		return ErrSuperseded
	}
	previous := m.credential
	m.credential = credential
	var previousStream Stream
	if replacement != nil {
		previousStream = m.stream
		m.stream = replacement
		m.sink = replacementSink
	}
	m.mu.Unlock()

	if previousStream != nil {
		previousStream.Close()
	}
	if previous != nil {
		previous.Close()
	}
	m.logger.Info("session credential refreshed", "redialed", replacement != nil)
	return nil
}

// withRetry runs one network step with bounded retry on transient
// errors. A fixed delay separates attempts; the context bounds the
// total time so a disconnecting daemon stops retrying promptly.
func (m *Manager) withRetry(ctx context.Context, step string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < m.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.clock.After(m.retryDelay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}

		m.logger.Warn("transient chat platform failure, retrying",
			"step", step,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return lastErr
}

// fail records a failed initialization step: transitions to StateError
// and reports through diag, unless a disconnect superseded the attempt
// (then the state is already StateClosed and stays there).
func (m *Manager) fail(generation uint64, action string, err error) error {
	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	reason := action + " failed"
	if IsCredentialError(err) {
		reason = "credential rejected"
	}
	m.transitionLocked(StateError, reason, err)
	m.mu.Unlock()

	m.reporter.Report(diag.Record{
		Section:     "chat",
		Action:      action,
		HasIdentity: m.identity() != nil,
		Err:         err,
	})
	return fmt.Errorf("chat: %s: %w", action, err)
}

// startRefreshLocked starts the refresh loop for the session that is
// entering StateOpen. Callers hold mu.
func (m *Manager) startRefreshLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	m.stopRefresh = cancel
	go m.refreshLoop(ctx)
}

// stopRefreshLocked cancels the refresh loop and any refresh fetch it
// has in flight. Callers hold mu.
func (m *Manager) stopRefreshLocked() {
	if m.stopRefresh != nil {
		m.stopRefresh()
		m.stopRefresh = nil
	}
}

// refreshLoop drives RefreshIfNeeded on the refresh interval while the
// session is open. Each tick performs at most one refresh; errors are
// logged and reported inside RefreshIfNeeded.
func (m *Manager) refreshLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.RefreshIfNeeded(ctx)
		}
	}
}

// streamSink routes a stream's callbacks to the manager. Its pointer
// identity names the session epoch: callbacks from a stream whose sink
// is no longer current are stale and discarded.
type streamSink struct {
	manager *Manager
}

var _ EventSink = (*streamSink)(nil)

func (s *streamSink) StreamEvent(event Event) {
	s.manager.handleStreamEvent(s, event)
}

func (s *streamSink) StreamClosed(err error) {
	s.manager.handleStreamClosed(s, err)
}

func (m *Manager) handleStreamEvent(sink *streamSink, event Event) {
	m.mu.Lock()
	current := sink == m.sink
	m.mu.Unlock()
	if !current {
		return
	}

	switch event.Type {
	case EventSessionClosed:
		// The server announced the end of the session. Some servers
		// follow with a close frame, some just go quiet; tear down
		// now instead of waiting for the keepalive to notice.
		m.teardownStream(sink, errors.New("chat: session closed by server"))
	default:
		m.logger.Debug("stream event",
			"type", event.Type,
			"channel_id", event.ChannelID,
		)
	}
}

func (m *Manager) handleStreamClosed(sink *streamSink, err error) {
	m.teardownStream(sink, err)
}

// teardownStream handles a live stream dying underneath an open
// session: the session cannot continue, so the manager lands in
// StateError and waits for an explicit Retry.
func (m *Manager) teardownStream(sink *streamSink, cause error) {
	m.mu.Lock()
	if sink != m.sink {
		// A replacement or disconnect already superseded this stream.
		m.mu.Unlock()
		return
	}
	stream := m.stream
	credential := m.credential
	m.stream = nil
	m.sink = nil
	m.credential = nil
	m.stopRefreshLocked()
	m.transitionLocked(StateError, "stream closed", cause)
	m.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if credential != nil {
		credential.Close()
	}
	m.reporter.Report(diag.Record{
		Section:     "chat",
		Action:      "stream closed",
		HasIdentity: m.identity() != nil,
		Err:         cause,
	})
}
