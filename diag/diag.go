// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package diag is the error-reporting sink for the Pavilion core.
//
// Components do not log their own failures ad hoc; they build a
// [Record] naming the section and action that failed plus coarse
// context (platform, provider, whether an identity was present) and
// hand it to a [Reporter]. The record deliberately has no field that
// could carry a token value, an email address, or a payload body;
// what is not representable cannot leak.
//
// The daemon installs [NewLogReporter] so reports land in the
// structured log at ERROR. Tests install a [Recorder] and assert on
// the captured records.
package diag

import (
	"log/slog"
	"sync"
)

// Record describes one failure. Section and Action are required; the
// remaining fields are context the operator can act on. Err's message
// is included verbatim in logs, so callers must not wrap secret
// material into it.
type Record struct {
	// Section is the reporting module: "chat", "push", "navigate".
	Section string

	// Action is the operation that failed: "register", "unregister",
	// "refresh", "connect", "deliver".
	Action string

	// Platform is the device platform in effect, when known.
	Platform string

	// Provider is the push provider involved, when the failure came
	// from a provider operation. Empty otherwise.
	Provider string

	// HasIdentity records whether an identity was signed in at the
	// time. The identity itself is never reported.
	HasIdentity bool

	// Err is the failure.
	Err error
}

// Reporter receives failure records. Implementations must be safe for
// concurrent use; providers report from the orchestrator's fan-out
// goroutines.
type Reporter interface {
	Report(record Record)
}

// Discard is a Reporter that drops every record. Constructors use it
// when the caller passes a nil reporter.
var Discard Reporter = discardReporter{}

type discardReporter struct{}

func (discardReporter) Report(Record) {}

// LogReporter writes records to a slog logger at ERROR.
type LogReporter struct {
	logger *slog.Logger
}

var _ Reporter = (*LogReporter)(nil)

// NewLogReporter returns a Reporter that logs through the given
// logger. A nil logger discards records.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogReporter{logger: logger}
}

// Report logs the record. Optional fields are omitted when unset so
// log lines stay greppable by shape.
func (r *LogReporter) Report(record Record) {
	args := []any{
		"section", record.Section,
		"action", record.Action,
	}
	if record.Platform != "" {
		args = append(args, "platform", record.Platform)
	}
	if record.Provider != "" {
		args = append(args, "provider", record.Provider)
	}
	args = append(args, "has_identity", record.HasIdentity)
	if record.Err != nil {
		args = append(args, "error", record.Err.Error())
	}
	r.logger.Error("operation failed", args...)
}

// Recorder is a Reporter that captures records for tests.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

var _ Reporter = (*Recorder)(nil)

// Report appends the record.
func (r *Recorder) Report(record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

// Records returns a copy of everything reported so far, in order.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Reset discards captured records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
