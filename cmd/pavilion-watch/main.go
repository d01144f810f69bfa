// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/cmd/pavilion/commands"
	"github.com/pavilion-club/pavilion/lib/version"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var connection commands.Connection
	var logOutput string

	flagSet := pflag.NewFlagSet("pavilion-watch", pflag.ContinueOnError)
	connection.AddFlags(flagSet)
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (in addition to the in-UI notices)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other Pavilion
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("pavilion-watch")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	socketPath, err := connection.ResolveSocket()
	if err != nil {
		return err
	}

	// Background logging (from the daemon source's reconnect loop) is
	// routed through a tuiLogHandler that surfaces warnings and errors
	// in the help bar instead of writing to stderr, which would corrupt
	// the alt-screen display. An optional file logger captures all
	// records for post-mortem debugging.
	tuiHandler := newTUILogHandler(slog.LevelWarn)

	var backgroundLogger *slog.Logger
	if logOutput != "" {
		fileHandler, fileCloser, fileErr := openFileLogHandler(logOutput)
		if fileErr != nil {
			return fmt.Errorf("cannot open log file %s: %w", logOutput, fileErr)
		}
		defer fileCloser()
		backgroundLogger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		backgroundLogger = slog.New(tuiHandler)
	}

	source := newDaemonSource(socketPath, backgroundLogger)
	defer source.Close()

	program := tea.NewProgram(newModel(source), tea.WithAltScreen())
	tuiHandler.SetProgram(program)

	_, err = program.Run()
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Pavilion watch: live terminal dashboard for the notification daemon.

Subscribes to the daemon's control socket and renders the chat session
state, push registrations, device status, and the notification feed as
they change. Reconnects with backoff if the daemon restarts. The watch
is read-only; use the pavilion CLI to drive the daemon.

Usage:
  pavilion-watch [flags]

Examples:
  # Watch the default daemon socket
  pavilion-watch

  # Watch a development daemon
  pavilion-watch --socket /tmp/pavilion-dev/core.sock

  # Keep a JSON log of reconnects alongside the display
  pavilion-watch --log-output /tmp/pavilion-watch.log

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// openFileLogHandler creates a slog.JSONHandler writing to the given
// path. Returns the handler, a cleanup function that closes the file,
// and any error. The file is created or truncated.
func openFileLogHandler(path string) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, func() { file.Close() }, nil
}
