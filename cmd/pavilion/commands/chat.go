// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:    "chat",
		Summary: "Chat session operations",
		Description: `Drive the daemon's chat session lifecycle: open the session, retry
after a failure, tear it down, and create direct channels.`,
		Subcommands: []*cli.Command{
			chatInitializeCommand(),
			chatRetryCommand(),
			chatDisconnectCommand(),
			chatChannelCommand(),
		},
	}
}

// sessionAction builds a command for the lifecycle actions that take
// no request fields and return the session state. The three lifecycle
// verbs differ only in action name and wording.
func sessionAction(name, action, summary, description string) *cli.Command {
	type params struct {
		Connection
		cli.JSONOutput
	}
	var p params

	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Usage:       "pavilion chat " + name + " [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			p.Connection.AddFlags(flagSet)
			p.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := p.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			var session sessionResult
			if err := client.Call(ctx, action, nil, &session); err != nil {
				return err
			}

			if done, err := p.EmitJSON(session); done {
				return err
			}

			fmt.Printf("session %s (generation %d)\n", session.State, session.Generation)
			return nil
		},
	}
}

func chatInitializeCommand() *cli.Command {
	return sessionAction("initialize", "chat.initialize",
		"Open the chat session",
		`Ask the daemon to open the chat session: issue a credential for the
signed-in member and connect the live socket. Requires a member
identity (see 'pavilion identity set'). Safe to repeat; a session
that is already opening or open is left alone.`)
}

func chatRetryCommand() *cli.Command {
	return sessionAction("retry", "chat.retry",
		"Retry after a failed session",
		`Retry the session after an error. Runs the same connect path as
initialize; the daemon logs it as an explicit retry.`)
}

func chatDisconnectCommand() *cli.Command {
	return sessionAction("disconnect", "chat.disconnect",
		"Tear the chat session down",
		`Close the live socket and drop the session credential. The session
generation advances, so stale events from the old stream are
discarded.`)
}

type channelParams struct {
	Connection
	cli.JSONOutput
}

func chatChannelCommand() *cli.Command {
	var params channelParams

	return &cli.Command{
		Name:    "channel",
		Summary: "Create a direct channel",
		Description: `Create (or fetch, when it already exists) the direct channel for a
set of member IDs. At least two participants are required.`,
		Usage: "pavilion chat channel <member-id> <member-id>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Direct channel between two members",
				Command:     "pavilion chat channel member-41 member-7",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("channel", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("at least two member IDs are required\n\nUsage: pavilion chat channel <member-id> <member-id>...")
			}

			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			var channel channelResult
			fields := map[string]any{"participants": args}
			if err := client.Call(ctx, "chat.channel", fields, &channel); err != nil {
				return err
			}

			if done, err := params.EmitJSON(channel); done {
				return err
			}

			fmt.Printf("channel %s\n", channel.ChannelID)
			if channel.Name != "" {
				fmt.Printf("name    %s\n", channel.Name)
			}
			if channel.URL != "" {
				fmt.Printf("url     %s\n", channel.URL)
			}
			return nil
		},
	}
}
