// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

func routerCommand() *cli.Command {
	return &cli.Command{
		Name:    "router",
		Summary: "Shell router readiness operations",
		Description: `Report the shell's navigation readiness. While the router is not
ready the daemon holds the latest pending navigation; marking it
ready flushes that target as a navigate frame on the subscribe
stream.`,
		Subcommands: []*cli.Command{
			routerActionCommand("ready", "router.ready",
				"Mark the shell router ready",
				`Mark the shell's navigation stack ready. A navigation held while the
router was down is flushed to the subscribe stream.`),
			routerActionCommand("suspended", "router.suspended",
				"Mark the shell router suspended",
				`Mark the shell's navigation stack suspended (scene teardown,
backgrounding). Later navigations are held until the router is ready
again; only the latest is kept.`),
		},
	}
}

// routerActionCommand builds one of the two readiness verbs. Neither
// takes request fields or returns data.
func routerActionCommand(name, action, summary, description string) *cli.Command {
	var connection Connection

	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Usage:       "pavilion router " + name + " [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := connection.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			return client.Call(ctx, action, nil, nil)
		},
	}
}
