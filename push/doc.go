// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package push keeps the device's push registrations in step with the
// member's state across every delivery provider.
//
// Each provider (marketing platform, chat platform) declares its own
// registration precondition through [Provider.CanRegister]; the
// [Orchestrator] has no provider-specific branching. Whenever an input
// changes (device token, identity, notification permission, chat
// session state) the orchestrator re-evaluates all providers against a
// fresh snapshot: providers whose precondition holds are registered,
// providers whose precondition no longer holds are unregistered.
//
// Push is best-effort. A provider failure is reported to diag and
// never blocks the other providers or any core feature.
package push
