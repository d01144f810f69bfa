// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in the
// help bar. Only records at or above the handler's configured level
// are delivered.
type logRecordMsg struct {
	// summary is the human-readable one-line message.
	summary string

	// isError selects the error styling over the warning styling.
	isError bool
}

// logFadeMsg is sent after a delay to clear the log notice from the
// help bar.
type logFadeMsg struct{}

// logFadeDelay is how long log notices stay visible before fading.
const logFadeDelay = 5 * time.Second

// tuiLogHandler is a slog.Handler that routes log records into the
// bubbletea program as messages. The watch draws on the alternate
// screen, so writing to stderr would corrupt it; anything worth
// surfacing becomes a transient notice instead.
//
// The handler must be created before the program starts. Call
// SetProgram once the tea.Program exists; records arriving before that
// are dropped. Handlers derived via WithAttrs/WithGroup share the same
// program pointer, so a single SetProgram call reaches all of them.
type tuiLogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	groups  []string
}

func newTUILogHandler(level slog.Level) *tuiLogHandler {
	return &tuiLogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram sets the bubbletea program that receives log messages.
// Safe to call from any goroutine.
func (handler *tuiLogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *tuiLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as "message (key=value, ...)" and sends it
// to the program. Dropped silently if the program is not set yet.
func (handler *tuiLogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	summary := record.Message
	var attrParts []string

	for _, attr := range handler.attrs {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
		return true
	})

	if len(attrParts) > 0 {
		summary += " ("
		for index, part := range attrParts {
			if index > 0 {
				summary += ", "
			}
			summary += part
		}
		summary += ")"
	}

	program.Send(logRecordMsg{
		summary: summary,
		isError: record.Level >= slog.LevelError,
	})
	return nil
}

// WithAttrs returns a derived handler with the attributes appended.
// The derivation shares the atomic program pointer.
func (handler *tuiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tuiLogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(sliceClone(handler.attrs), attrs...),
		groups:  sliceClone(handler.groups),
	}
}

// WithGroup returns a derived handler with the group name appended.
// The derivation shares the atomic program pointer.
func (handler *tuiLogHandler) WithGroup(name string) slog.Handler {
	return &tuiLogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   sliceClone(handler.attrs),
		groups:  append(sliceClone(handler.groups), name),
	}
}

// sliceClone returns a shallow copy of a slice. Avoids aliasing when
// building derived handlers.
func sliceClone[T any](source []T) []T {
	if source == nil {
		return nil
	}
	result := make([]T, len(source))
	copy(result, source)
	return result
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level. Used to pair the in-UI notice with an
// optional JSON log file.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
