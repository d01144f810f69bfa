// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the client core.
//
// Configuration is loaded from a single file specified by either the
// PAVILION_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches, typically pointing the chat and
// marketing clients at non-production endpoints.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${PAVILION_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Secrets never live in the file. The chat and marketing sections name
// the environment variables that hold API keys (api_key_env); the
// daemon reads those values at startup into locked memory, and this
// package never sees them.
//
// This package depends on no other Pavilion packages.
package config
