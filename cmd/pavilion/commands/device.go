// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

func deviceCommand() *cli.Command {
	return &cli.Command{
		Name:    "device",
		Summary: "Device push state operations",
		Description: `Report device push inputs to the daemon: the platform push token
and the notification permission status. Registration rounds triggered
by a change run in the background; watch their results with
'pavilion stream' or check 'pavilion status'.`,
		Subcommands: []*cli.Command{
			deviceTokenCommand(),
			devicePermissionCommand(),
		},
	}
}

type deviceTokenParams struct {
	Connection
	cli.JSONOutput
	Clear bool
}

func deviceTokenCommand() *cli.Command {
	var params deviceTokenParams

	return &cli.Command{
		Name:    "token",
		Summary: "Set or clear the device push token",
		Description: `Hand the daemon the platform push token, or report its loss with
--clear. An empty token unregisters push on the next round.`,
		Usage: "pavilion device token <token> [flags]",
		Examples: []cli.Example{
			{
				Description: "Report a fresh token",
				Command:     "pavilion device token dead-beef-token",
			},
			{
				Description: "Report a revoked token",
				Command:     "pavilion device token --clear",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVar(&params.Clear, "clear", false, "clear the stored token")
			return flagSet
		},
		Run: func(args []string) error {
			var token string
			switch {
			case params.Clear && len(args) > 0:
				return fmt.Errorf("--clear takes no token argument")
			case params.Clear:
				// token stays empty
			case len(args) == 1:
				token = args[0]
			case len(args) == 0:
				return fmt.Errorf("a token is required (or --clear)\n\nUsage: pavilion device token <token>")
			default:
				return fmt.Errorf("expected 1 token argument, got %d", len(args))
			}

			return deviceCall(params.Connection, params.JSONOutput,
				"device.token", map[string]any{"token": token})
		},
	}
}

type devicePermissionParams struct {
	Connection
	cli.JSONOutput
}

func devicePermissionCommand() *cli.Command {
	var params devicePermissionParams

	return &cli.Command{
		Name:    "permission",
		Summary: "Report the notification permission status",
		Description: `Report the platform notification permission: undetermined, granted,
or denied. Grants make push registration eligible; denials unregister
on the next round.`,
		Usage: "pavilion device permission <status> [flags]",
		Examples: []cli.Example{
			{
				Description: "The member granted notifications",
				Command:     "pavilion device permission granted",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("permission", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one status is required (undetermined, granted, denied)\n\nUsage: pavilion device permission <status>")
			}

			return deviceCall(params.Connection, params.JSONOutput,
				"device.permission", map[string]any{"status": args[0]})
		},
	}
}

// deviceCall runs one device action and renders the returned device
// snapshot.
func deviceCall(connection Connection, jsonOutput cli.JSONOutput, action string, fields map[string]any) error {
	client, err := connection.client()
	if err != nil {
		return err
	}

	ctx, cancel := callContext()
	defer cancel()

	var result deviceResult
	if err := client.Call(ctx, action, fields, &result); err != nil {
		return err
	}

	if done, err := jsonOutput.EmitJSON(result); done {
		return err
	}

	fmt.Printf("platform   %s\n", result.Device.Platform)
	fmt.Printf("token      %s\n", presence(result.Device.HasToken))
	fmt.Printf("permission %s\n", result.Device.Permission)
	return nil
}
