// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

type statusParams struct {
	Connection
	cli.JSONOutput
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show a core status snapshot",
		Description: `Query the daemon for one snapshot of everything it owns: chat
session state, member sign-in, device push state, per-provider
registration results, feed size, and uptime.`,
		Usage: "pavilion status [flags]",
		Examples: []cli.Example{
			{
				Description: "Human-readable snapshot",
				Command:     "pavilion status",
			},
			{
				Description: "JSON for scripting",
				Command:     "pavilion status --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			var status statusResult
			if err := client.Call(ctx, "status", nil, &status); err != nil {
				return err
			}

			if done, err := params.EmitJSON(status); done {
				return err
			}

			return writeStatus(status)
		},
	}
}

// writeStatus renders the snapshot as aligned key/value lines followed
// by a registration table.
func writeStatus(status statusResult) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(writer, "Session:\t%s (generation %d)\n", status.State, status.Generation)
	fmt.Fprintf(writer, "Signed in:\t%t\n", status.SignedIn)
	fmt.Fprintf(writer, "Platform:\t%s\n", status.Device.Platform)
	fmt.Fprintf(writer, "Push token:\t%s\n", presence(status.Device.HasToken))
	fmt.Fprintf(writer, "Permission:\t%s\n", status.Device.Permission)
	fmt.Fprintf(writer, "Feed:\t%d records\n", status.FeedSize)
	fmt.Fprintf(writer, "Uptime:\t%.0fs\n", status.UptimeSeconds)
	writer.Flush()

	if len(status.Registrations) > 0 {
		fmt.Println()
		writeRegistrationTable(status.Registrations)
	}

	return nil
}

// writeRegistrationTable writes one row per push provider.
func writeRegistrationTable(registrations []registrationStatus) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "PROVIDER\tREGISTERED\tERROR\n")
	for _, registration := range registrations {
		fmt.Fprintf(writer, "%s\t%t\t%s\n",
			registration.Provider,
			registration.Registered,
			registration.Error,
		)
	}
	writer.Flush()
}

// presence renders a has/doesn't-have boolean for the status view.
func presence(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
