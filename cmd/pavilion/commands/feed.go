// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
	"github.com/pavilion-club/pavilion/feed"
)

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:    "feed",
		Summary: "Archived notification feed operations",
		Subcommands: []*cli.Command{
			feedListCommand(),
		},
	}
}

type feedListParams struct {
	Connection
	cli.JSONOutput
	Limit int
}

func feedListCommand() *cli.Command {
	var params feedListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List archived notifications, newest first",
		Description: `List the notifications the daemon has archived, newest first. The
daemon caps the page size; a non-positive --limit asks for its
default.`,
		Usage: "pavilion feed list [flags]",
		Examples: []cli.Example{
			{
				Description: "The latest ten notifications",
				Command:     "pavilion feed list --limit 10",
			},
			{
				Description: "Full records as JSON",
				Command:     "pavilion feed list --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.IntVar(&params.Limit, "limit", 0, "maximum records (0 for the daemon's default)")
			return flagSet
		},
		Run: func(args []string) error {
			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			var result feedListResult
			fields := map[string]any{"limit": params.Limit}
			if err := client.Call(ctx, "feed.list", fields, &result); err != nil {
				return err
			}

			if done, err := params.EmitJSON(result.Records); done {
				return err
			}

			if len(result.Records) == 0 {
				fmt.Println("feed is empty")
				return nil
			}

			return writeFeedTable(result.Records)
		},
	}
}

// writeFeedTable writes a compact table of feed records to stdout.
func writeFeedTable(records []feed.Record) error {
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "RECEIVED\tPROVIDER\tTITLE\tTARGET\n")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			record.ReceivedAt.Local().Format("2006-01-02 15:04:05"),
			record.Provider,
			truncate(record.Title, 40),
			record.Target,
		)
	}
	return writer.Flush()
}

// truncate shortens a string to maxLength, appending "..." if
// truncated.
func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
