// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package navigate

import (
	"errors"
	"net/url"
	"strings"
)

// Scheme is the app's deep-link URL scheme.
const Scheme = "app"

// ErrNoTarget reports that a payload carries no valid navigation
// target. It is the normal outcome for informational notifications,
// not a failure.
var ErrNoTarget = errors.New("navigate: no navigation target")

// Target is the canonical navigation target: an in-app path plus its
// parameters, independent of which provider's payload shape it came
// from.
type Target struct {
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

// IsZero reports whether the target is empty.
func (t Target) IsZero() bool {
	return t.Path == "" && len(t.Params) == 0
}

// String renders the target in canonical deep-link form,
// "app://<path>?<params>" with parameters sorted by name. The zero
// target renders as "".
func (t Target) String() string {
	if t.IsZero() {
		return ""
	}
	var builder strings.Builder
	builder.WriteString(Scheme)
	builder.WriteString("://")
	builder.WriteString(t.Path)
	if len(t.Params) > 0 {
		values := url.Values{}
		for name, value := range t.Params {
			values.Set(name, value)
		}
		builder.WriteString("?")
		builder.WriteString(values.Encode())
	}
	return builder.String()
}

// Param returns the named parameter, or "" when absent.
func (t Target) Param(name string) string {
	return t.Params[name]
}

// parseAppURL extracts a target from a deep-link URL. Only the app
// scheme is accepted; anything else yields ErrNoTarget.
func parseAppURL(raw string) (Target, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme != Scheme {
		return Target{}, ErrNoTarget
	}

	// In "app://chat/channel" the first path segment parses as the
	// URL host; fold it back into the path.
	path := strings.Trim(parsed.Host+"/"+strings.Trim(parsed.Path, "/"), "/")
	if path == "" {
		return Target{}, ErrNoTarget
	}

	var params map[string]string
	if query := parsed.Query(); len(query) > 0 {
		params = make(map[string]string, len(query))
		for name := range query {
			params[name] = query.Get(name)
		}
	}
	return Target{Path: path, Params: params}, nil
}
