// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
)

type streamParams struct {
	Connection
	cli.JSONOutput
	Heartbeats bool
}

func streamCommand() *cli.Command {
	var params streamParams

	return &cli.Command{
		Name:    "stream",
		Summary: "Follow the daemon's live frame stream",
		Description: `Subscribe to the daemon and print every frame as it arrives: session
transitions, registration rounds, navigations, banners. The daemon
opens with a snapshot (current state plus registrations), so the
first frames describe where things stand.

Runs until interrupted. If the daemon ends the stream the command
exits non-zero; wrap it in a loop to follow across restarts.`,
		Usage: "pavilion stream [flags]",
		Examples: []cli.Example{
			{
				Description: "Watch frames in the terminal",
				Command:     "pavilion stream",
			},
			{
				Description: "JSON lines for a consumer process",
				Command:     "pavilion stream --json --heartbeats",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stream", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVar(&params.Heartbeats, "heartbeats", false, "include heartbeat frames")
			return flagSet
		},
		Run: func(args []string) error {
			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stream, err := client.Subscribe(ctx, "subscribe", nil)
			if err != nil {
				return err
			}
			defer stream.Close()

			encoder := json.NewEncoder(os.Stdout)
			for {
				var frame streamFrame
				if err := stream.Next(&frame); err != nil {
					// Interruption closes the connection under the
					// decoder; that is the clean exit.
					if ctx.Err() != nil {
						return nil
					}
					return err
				}

				if frame.Type == "heartbeat" && !params.Heartbeats {
					continue
				}

				if params.OutputJSON {
					if err := encoder.Encode(frame); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), renderFrame(frame))
			}
		},
	}
}

// renderFrame formats one frame as a single text line.
func renderFrame(frame streamFrame) string {
	switch frame.Type {
	case "state":
		line := "state: " + frame.State
		if frame.Reason != "" {
			line += " (" + frame.Reason + ")"
		}
		if frame.Error != "" {
			line += " error: " + frame.Error
		}
		return line

	case "registration":
		parts := make([]string, 0, len(frame.Registrations))
		for _, registration := range frame.Registrations {
			part := registration.Provider + " unregistered"
			if registration.Registered {
				part = registration.Provider + " registered"
			}
			if registration.Error != "" {
				part += " (" + registration.Error + ")"
			}
			parts = append(parts, part)
		}
		return "registration: " + strings.Join(parts, ", ")

	case "navigate":
		if frame.Target == nil {
			return "navigate:"
		}
		return "navigate: " + frame.Target.String()

	case "banner":
		line := "banner:"
		if frame.Payload != nil {
			if frame.Payload.Title != "" {
				line += " " + frame.Payload.Title
			}
			if frame.Payload.Body != "" {
				line += ": " + frame.Payload.Body
			}
		}
		if frame.Target != nil && !frame.Target.IsZero() {
			line += " -> " + frame.Target.String()
		}
		return line

	case "heartbeat":
		return "heartbeat"

	default:
		// Unknown frame types are expected across version skew; show
		// the type so the operator knows something arrived.
		return frame.Type
	}
}
