// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/diag"
	"github.com/pavilion-club/pavilion/identity"
	"github.com/pavilion-club/pavilion/platform"
)

// Config holds configuration for creating an Orchestrator.
type Config struct {
	// Providers are evaluated on every input change, in order. The
	// slice may be empty (platforms without a push adapter).
	Providers []Provider

	// Platform is the device platform, included in the registration
	// context and in diagnostics.
	Platform platform.Kind

	// Reporter receives provider failures. If nil, diag.Discard is
	// used.
	Reporter diag.Reporter

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// OnEvaluated, if set, is called after every evaluation round
	// with the per-provider results, outside the orchestrator's lock.
	OnEvaluated func(results []Result)
}

// Orchestrator keeps every provider's registration in step with the
// latest inputs. Input setters record the change and trigger a
// re-evaluation; evaluation rounds are serialized, and an input change
// arriving during a round queues exactly one follow-up round, which
// snapshots the latest inputs. Stale in-flight registrations are
// therefore corrected by the follow-up round's key comparison, not by
// cancellation.
type Orchestrator struct {
	providers   []Provider
	platform    platform.Kind
	reporter    diag.Reporter
	logger      *slog.Logger
	onEvaluated func(results []Result)

	mu          sync.Mutex
	cond        *sync.Cond
	deviceToken string
	member      *identity.Identity
	chatState   chat.State
	permission  bool
	evaluating  bool
	pendingEval bool
}

// NewOrchestrator creates an orchestrator over the given providers.
func NewOrchestrator(config Config) *Orchestrator {
	reporter := config.Reporter
	if reporter == nil {
		reporter = diag.Discard
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orchestrator := &Orchestrator{
		providers:   config.Providers,
		platform:    config.Platform,
		reporter:    reporter,
		logger:      logger,
		onEvaluated: config.OnEvaluated,
		chatState:   chat.StateClosed,
	}
	orchestrator.cond = sync.NewCond(&orchestrator.mu)
	return orchestrator
}

// UpdateDeviceToken records a new device token and re-evaluates all
// providers. Setting the token it already holds is a no-op.
func (o *Orchestrator) UpdateDeviceToken(ctx context.Context, token string) {
	o.mu.Lock()
	if o.deviceToken == token {
		o.mu.Unlock()
		return
	}
	o.deviceToken = token
	o.mu.Unlock()
	o.evaluate(ctx)
}

// UpdateIdentity records the signed-in member (nil on sign-out) and
// re-evaluates all providers.
func (o *Orchestrator) UpdateIdentity(ctx context.Context, member *identity.Identity) {
	o.mu.Lock()
	if identityEqual(o.member, member) {
		o.mu.Unlock()
		return
	}
	o.member = member
	o.mu.Unlock()
	o.evaluate(ctx)
}

// UpdatePermission records the OS notification permission and
// re-evaluates all providers.
func (o *Orchestrator) UpdatePermission(ctx context.Context, granted bool) {
	o.mu.Lock()
	if o.permission == granted {
		o.mu.Unlock()
		return
	}
	o.permission = granted
	o.mu.Unlock()
	o.evaluate(ctx)
}

// HandleChatState records a chat session state change and re-evaluates
// all providers: on the transition into open the session-bound
// provider becomes registrable, on the transition out it is
// unregistered.
func (o *Orchestrator) HandleChatState(ctx context.Context, state chat.State) {
	o.mu.Lock()
	if o.chatState == state {
		o.mu.Unlock()
		return
	}
	o.chatState = state
	o.mu.Unlock()
	o.evaluate(ctx)
}

// RegisterAll forces an evaluation round against the current inputs
// and returns the per-provider results. If a round is already running
// it waits for its turn, so the returned results always reflect inputs
// at least as new as the call.
func (o *Orchestrator) RegisterAll(ctx context.Context) []Result {
	o.acquireSlot()
	return o.runEvaluations(ctx)
}

// UnregisterAll unregisters every provider that holds a registration,
// regardless of preconditions. Each provider's failure is isolated and
// reported; the remaining providers are still unregistered.
func (o *Orchestrator) UnregisterAll(ctx context.Context) []Result {
	o.acquireSlot()

	rc := o.snapshot()
	results := make([]Result, len(o.providers))
	var group sync.WaitGroup
	for i, provider := range o.providers {
		group.Add(1)
		go func() {
			defer group.Done()
			result := Result{Provider: provider.Name()}
			if provider.IsRegistered() {
				if err := provider.Unregister(ctx); err != nil {
					result.Err = err
					o.report(rc, "unregister", provider.Name(), err)
				}
			}
			result.Registered = provider.IsRegistered()
			results[i] = result
		}()
	}
	group.Wait()
	o.notifyEvaluated(results)

	// An input change that arrived during the teardown still gets its
	// evaluation round.
	o.mu.Lock()
	pending := o.pendingEval
	o.pendingEval = false
	o.mu.Unlock()
	if pending {
		o.runEvaluations(ctx)
	} else {
		o.releaseSlot()
	}
	return results
}

// Registrations reports each provider's current registration state
// without performing any network calls.
func (o *Orchestrator) Registrations() []Result {
	results := make([]Result, len(o.providers))
	for i, provider := range o.providers {
		results[i] = Result{Provider: provider.Name(), Registered: provider.IsRegistered()}
	}
	return results
}

// evaluate triggers an evaluation round. If a round is already in
// flight it queues a single follow-up and returns immediately: the
// caller's input change is already recorded and the follow-up round
// will snapshot it.
func (o *Orchestrator) evaluate(ctx context.Context) {
	o.mu.Lock()
	if o.evaluating {
		o.pendingEval = true
		o.mu.Unlock()
		return
	}
	o.evaluating = true
	o.mu.Unlock()
	o.runEvaluations(ctx)
}

// runEvaluations runs evaluation rounds until no follow-up is queued,
// then releases the evaluation slot. The caller must hold the slot.
// Returns the last round's results.
func (o *Orchestrator) runEvaluations(ctx context.Context) []Result {
	for {
		results := o.evaluateOnce(ctx)

		o.mu.Lock()
		if !o.pendingEval {
			o.evaluating = false
			o.cond.Broadcast()
			o.mu.Unlock()
			return results
		}
		o.pendingEval = false
		o.mu.Unlock()
	}
}

// evaluateOnce runs one fan-out round against a snapshot of the
// current inputs. Providers run concurrently; results are collected in
// provider order.
func (o *Orchestrator) evaluateOnce(ctx context.Context) []Result {
	rc := o.snapshot()
	results := make([]Result, len(o.providers))
	var group sync.WaitGroup
	for i, provider := range o.providers {
		group.Add(1)
		go func() {
			defer group.Done()
			results[i] = o.evaluateProvider(ctx, provider, rc)
		}()
	}
	group.Wait()
	o.notifyEvaluated(results)
	return results
}

// evaluateProvider brings one provider in line with the snapshot:
// register when the precondition holds, unregister when it no longer
// does. An unmet precondition with no prior registration is a plain
// skip, not an error.
func (o *Orchestrator) evaluateProvider(ctx context.Context, provider Provider, rc Context) Result {
	result := Result{Provider: provider.Name()}
	switch {
	case provider.CanRegister(ctx, rc):
		if _, err := provider.Register(ctx, rc); err != nil {
			result.Err = err
			o.report(rc, "register", provider.Name(), err)
		}
	case provider.IsRegistered():
		if err := provider.Unregister(ctx); err != nil {
			result.Err = err
			o.report(rc, "unregister", provider.Name(), err)
		}
	}
	result.Registered = provider.IsRegistered()
	return result
}

func (o *Orchestrator) snapshot() Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Context{
		DeviceToken:       o.deviceToken,
		Platform:          o.platform,
		Identity:          o.member,
		ChatState:         o.chatState,
		PermissionGranted: o.permission,
	}
}

func (o *Orchestrator) acquireSlot() {
	o.mu.Lock()
	for o.evaluating {
		o.cond.Wait()
	}
	o.evaluating = true
	o.mu.Unlock()
}

func (o *Orchestrator) releaseSlot() {
	o.mu.Lock()
	o.evaluating = false
	o.cond.Broadcast()
	o.mu.Unlock()
}

func (o *Orchestrator) report(rc Context, action, provider string, err error) {
	o.logger.Warn("push provider failure",
		"provider", provider,
		"action", action,
		"error", err)
	o.reporter.Report(diag.Record{
		Section:     "push",
		Action:      action,
		Platform:    rc.Platform.String(),
		Provider:    provider,
		HasIdentity: rc.Identity != nil,
		Err:         err,
	})
}

func (o *Orchestrator) notifyEvaluated(results []Result) {
	if o.onEvaluated != nil {
		o.onEvaluated(results)
	}
}

func identityEqual(a, b *identity.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Email == b.Email
}
