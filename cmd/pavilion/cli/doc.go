// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the pavilion CLI.
//
// The central type is [Command]: a named subcommand with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// Commands are assembled into a tree in cmd/pavilion/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3). This lives in
// suggest.go.
//
// Output helpers: [WriteJSON] emits indented JSON to stdout, and the
// embeddable [JSONOutput] gives a command a --json flag plus the
// EmitJSON method for switching between machine and text output.
// [NewCommandLogger] builds a slog.Logger whose handler follows the
// stderr destination: text for terminals, JSON for pipes.
package cli
