// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/lipgloss"

// theme defines the color palette for the watch. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type theme struct {
	// Text colors.
	normalText lipgloss.Color
	faintText  lipgloss.Color

	// Selected feed row.
	selectedBackground lipgloss.Color
	selectedForeground lipgloss.Color

	// Session state colors.
	stateOpen    lipgloss.Color
	statePending lipgloss.Color // initializing, connecting
	stateError   lipgloss.Color
	stateClosed  lipgloss.Color

	// Provider badges in the feed and registration lines.
	providerChat      lipgloss.Color
	providerMarketing lipgloss.Color

	// UI chrome.
	headerForeground lipgloss.Color
	borderColor      lipgloss.Color
	helpText         lipgloss.Color

	// Background tint for feed records that just arrived.
	hotAccent lipgloss.Color
}

// stateColor returns the color for a session state string. Unknown
// states render faint.
func (t theme) stateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return t.stateOpen
	case "initializing", "connecting":
		return t.statePending
	case "error":
		return t.stateError
	case "closed":
		return t.stateClosed
	default:
		return t.faintText
	}
}

// providerColor returns the badge color for a delivery provider.
func (t theme) providerColor(provider string) lipgloss.Color {
	switch provider {
	case "chat":
		return t.providerChat
	case "marketing":
		return t.providerMarketing
	default:
		return t.faintText
	}
}

// defaultTheme is the built-in dark-terminal color scheme.
var defaultTheme = theme{
	normalText: lipgloss.Color("252"),
	faintText:  lipgloss.Color("245"),

	selectedBackground: lipgloss.Color("236"),
	selectedForeground: lipgloss.Color("255"),

	stateOpen:    lipgloss.Color("114"), // green
	statePending: lipgloss.Color("220"), // amber
	stateError:   lipgloss.Color("196"), // red
	stateClosed:  lipgloss.Color("245"), // gray

	providerChat:      lipgloss.Color("75"),  // blue
	providerMarketing: lipgloss.Color("141"), // light purple

	headerForeground: lipgloss.Color("255"),
	borderColor:      lipgloss.Color("240"),
	helpText:         lipgloss.Color("241"),

	hotAccent: lipgloss.Color("58"), // dark amber background tint
}
