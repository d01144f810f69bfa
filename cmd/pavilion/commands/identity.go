// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

func identityCommand() *cli.Command {
	return &cli.Command{
		Name:    "identity",
		Summary: "Member identity operations",
		Description: `Sign a member in from a provider ID token, or sign out. The daemon
decodes the token locally and keeps only the display claims; the
token itself is never stored or logged.`,
		Subcommands: []*cli.Command{
			identitySetCommand(),
			identityClearCommand(),
		},
	}
}

type identitySetParams struct {
	Connection
	cli.JSONOutput
	TokenFile string
}

func identitySetCommand() *cli.Command {
	var params identitySetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Sign a member in from an ID token",
		Description: `Hand the daemon a provider-issued ID token (a JWT). The daemon
decodes the identity claims and updates push registrations to match.

The token is read from --token-file, or from stdin when the file is
"-". It is deliberately not accepted as an argument: command lines
are visible to every process on the machine.`,
		Usage: "pavilion identity set --token-file FILE [flags]",
		Examples: []cli.Example{
			{
				Description: "Sign in from a token file",
				Command:     "pavilion identity set --token-file /tmp/id-token",
			},
			{
				Description: "Sign in from stdin",
				Command:     "provider-login | pavilion identity set --token-file -",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.StringVar(&params.TokenFile, "token-file", "", "path to the ID token file (\"-\" for stdin)")
			return flagSet
		},
		Run: func(args []string) error {
			if params.TokenFile == "" {
				return fmt.Errorf("--token-file is required\n\nUsage: pavilion identity set --token-file FILE")
			}

			token, err := readTokenFile(params.TokenFile)
			if err != nil {
				return err
			}

			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			var result identityResult
			fields := map[string]any{"id_token": token}
			if err := client.Call(ctx, "identity.update", fields, &result); err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			fmt.Printf("signed in as %s\n", result.IdentityID)
			if result.GivenName != "" {
				fmt.Printf("given name  %s\n", result.GivenName)
			}
			fmt.Printf("email claim %s\n", presence(result.HasEmail))
			return nil
		},
	}
}

type identityClearParams struct {
	Connection
	cli.JSONOutput
}

func identityClearCommand() *cli.Command {
	var params identityClearParams

	return &cli.Command{
		Name:    "clear",
		Summary: "Sign the member out",
		Description: `Sign out: unregister push on every provider, tear the chat session
down, and drop the member identity.`,
		Usage: "pavilion identity clear [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("clear", pflag.ContinueOnError)
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

			var result logoutResult
			if err := client.Call(ctx, "identity.clear", nil, &result); err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			fmt.Println("signed out")
			if len(result.Registrations) > 0 {
				fmt.Println()
				writeRegistrationTable(result.Registrations)
			}
			return nil
		},
	}
}

// readTokenFile reads a token from a file, or from stdin when path is
// "-". The value is trimmed of surrounding whitespace and never
// logged.
func readTokenFile(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}
