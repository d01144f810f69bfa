// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package navigate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/jsonc"
)

//go:embed routes.jsonc
var embeddedRoutes []byte

// RouteParam declares one parameter a route accepts.
type RouteParam struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Route declares one known in-app destination.
type Route struct {
	Path        string       `json:"path"`
	Params      []RouteParam `json:"params"`
	Description string       `json:"description"`
}

// Table is the set of navigable in-app destinations. Targets are
// validated against it before any dispatch.
type Table struct {
	routes map[string]Route
}

// DefaultTable returns the table embedded in the binary.
func DefaultTable() *Table {
	table, err := ParseTable(embeddedRoutes)
	if err != nil {
		// The embedded table is validated by the package tests; a
		// parse failure here is a build defect.
		panic("navigate: embedded route table: " + err.Error())
	}
	return table
}

// LoadTable reads a route table from a JSONC file, for deployments
// that override the embedded table.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("navigate: reading route table: %w", err)
	}
	table, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("navigate: route table %s: %w", path, err)
	}
	return table, nil
}

// ParseTable parses a JSONC route table.
func ParseTable(data []byte) (*Table, error) {
	var file struct {
		Routes []Route `json:"routes"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("route table declares no routes")
	}

	routes := make(map[string]Route, len(file.Routes))
	for _, route := range file.Routes {
		if route.Path == "" {
			return nil, fmt.Errorf("route with empty path")
		}
		if _, exists := routes[route.Path]; exists {
			return nil, fmt.Errorf("duplicate route %q", route.Path)
		}
		for _, param := range route.Params {
			if param.Name == "" {
				return nil, fmt.Errorf("route %q: parameter with empty name", route.Path)
			}
		}
		routes[route.Path] = route
	}
	return &Table{routes: routes}, nil
}

// Lookup returns the route declaration for a path.
func (t *Table) Lookup(path string) (Route, bool) {
	route, ok := t.routes[path]
	return route, ok
}

// Routes returns all declared routes sorted by path.
func (t *Table) Routes() []Route {
	routes := make([]Route, 0, len(t.routes))
	for _, route := range t.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes
}

// Validate checks a target against the table: the path must be
// declared and every required parameter present and non-empty.
func (t *Table) Validate(target Target) error {
	route, ok := t.routes[target.Path]
	if !ok {
		return fmt.Errorf("navigate: unknown route %q", target.Path)
	}
	for _, param := range route.Params {
		if param.Required && target.Param(param.Name) == "" {
			return fmt.Errorf("navigate: route %q: missing required parameter %q", target.Path, param.Name)
		}
	}
	return nil
}
