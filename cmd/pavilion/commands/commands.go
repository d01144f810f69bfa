// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the pavilion CLI command tree. Every
// subcommand talks to the daemon's control socket; nothing here
// reaches the chat or marketing platforms directly.
package commands

import (
	"fmt"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
	"github.com/pavilion-club/pavilion/lib/version"
)

// Root builds and returns the complete pavilion CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "pavilion",
		Description: `Pavilion: control plane CLI for the Pavilion core daemon.

Inspect and drive the daemon over its control socket: chat session
lifecycle, member identity, device push state, notification routing,
and the archived notification feed.`,
		Subcommands: []*cli.Command{
			statusCommand(),
			chatCommand(),
			identityCommand(),
			deviceCommand(),
			notifyCommand(),
			routerCommand(),
			feedCommand(),
			streamCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("pavilion %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Check the daemon (start here when lost)",
				Command:     "pavilion status",
			},
			{
				Description: "Sign a member in from a provider ID token",
				Command:     "pavilion identity set --token-file /tmp/id-token",
			},
			{
				Description: "Open the chat session",
				Command:     "pavilion chat initialize",
			},
			{
				Description: "Hand the daemon a device push token",
				Command:     "pavilion device token dead-beef-token",
			},
			{
				Description: "Watch live session and registration frames",
				Command:     "pavilion stream",
			},
			{
				Description: "List the latest archived notifications",
				Command:     "pavilion feed list --limit 10",
			},
		},
	}
}
