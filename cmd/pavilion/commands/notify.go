// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
	"github.com/pavilion-club/pavilion/navigate"
)

func notifyCommand() *cli.Command {
	return &cli.Command{
		Name:    "notify",
		Summary: "Hand notification payloads to the daemon",
		Description: `Feed push notification payloads into the daemon's router, the way
the shell does when notifications arrive. Routing results (banner and
navigate frames) arrive on the subscribe stream; watch them with
'pavilion stream'.`,
		Subcommands: []*cli.Command{
			notifyActionCommand("foreground", "notify.foreground",
				"Deliver a foreground notification",
				`Deliver a payload that arrived while the app was in the foreground.
The daemon archives it to the feed, deduplicates repeats, and emits a
banner frame on the subscribe stream.`),
			notifyActionCommand("opened", "notify.opened",
				"Report a tapped notification",
				`Report a notification the member tapped. The daemon parses the
navigation target and emits a navigate frame, holding it until the
shell reports the router ready.`),
		},
	}
}

type notifyParams struct {
	Connection
	PayloadFile string
	Provider    string
	Title       string
	Body        string
	Data        map[string]string
}

// notifyActionCommand builds one of the two notify verbs; they differ
// only in action name and wording.
func notifyActionCommand(name, action, summary, description string) *cli.Command {
	var params notifyParams

	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Usage:       "pavilion notify " + name + " [flags]",
		Examples: []cli.Example{
			{
				Description: "Payload from a JSON file",
				Command:     "pavilion notify " + name + " --payload-file payload.json",
			},
			{
				Description: "Payload built from flags",
				Command:     "pavilion notify " + name + " --provider chat --title 'New message' --data channel_id=club-lounge",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			flagSet.StringVar(&params.PayloadFile, "payload-file", "", "JSON payload file (\"-\" for stdin)")
			flagSet.StringVar(&params.Provider, "provider", "", "delivery provider (chat, marketing)")
			flagSet.StringVar(&params.Title, "title", "", "notification title")
			flagSet.StringVar(&params.Body, "body", "", "notification body")
			flagSet.StringToStringVar(&params.Data, "data", nil, "custom data fields (key=value)")
			return flagSet
		},
		Run: func(args []string) error {
			payload, err := params.payload()
			if err != nil {
				return err
			}

			client, err := params.client()
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()

			return client.Call(ctx, action, map[string]any{"payload": payload}, nil)
		},
	}
}

// payload builds the notification payload from --payload-file or the
// inline flags. The file wins when both are given.
func (p *notifyParams) payload() (navigate.Payload, error) {
	if p.PayloadFile != "" {
		return readPayloadFile(p.PayloadFile)
	}

	payload := navigate.Payload{
		Provider: p.Provider,
		Title:    p.Title,
		Body:     p.Body,
		Data:     p.Data,
	}
	if payload.Provider == "" && payload.Title == "" && payload.Body == "" && len(payload.Data) == 0 {
		return navigate.Payload{}, fmt.Errorf("a payload is required: --payload-file or the --provider/--title/--body/--data flags")
	}
	return payload, nil
}

// readPayloadFile reads a JSON payload from a file, or from stdin when
// path is "-".
func readPayloadFile(path string) (navigate.Payload, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return navigate.Payload{}, fmt.Errorf("reading payload: %w", err)
	}

	var payload navigate.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return navigate.Payload{}, fmt.Errorf("parsing payload %s: %w", path, err)
	}
	return payload, nil
}
