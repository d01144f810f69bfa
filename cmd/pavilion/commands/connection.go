// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/pavilion-club/pavilion/bridge"
	"github.com/pavilion-club/pavilion/lib/config"
)

// socketEnvVar overrides the control socket path without a flag.
const socketEnvVar = "PAVILION_SOCKET"

// Connection resolves the daemon control socket for CLI commands.
// Embed it in a command's params struct and call AddFlags during flag
// registration.
//
// Socket resolution order:
//
//  1. the --socket flag
//  2. the PAVILION_SOCKET environment variable
//  3. the bridge socket from the config file (--config, then
//     $PAVILION_CONFIG)
//  4. the built-in default under the user's cache directory
type Connection struct {
	SocketPath string
	ConfigPath string
}

// AddFlags registers the --socket and --config flags.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.SocketPath, "socket", "", "daemon control socket path (defaults to $PAVILION_SOCKET, then the config file's bridge socket)")
	flagSet.StringVar(&c.ConfigPath, "config", "", "config file path (defaults to $PAVILION_CONFIG)")
}

// client creates a bridge client for the resolved socket path. No
// connection is made until the first call.
func (c *Connection) client() (*bridge.Client, error) {
	path, err := c.ResolveSocket()
	if err != nil {
		return nil, err
	}
	return bridge.NewClient(path), nil
}

// ResolveSocket applies the resolution order documented on Connection.
// Exported for pavilion-watch, which shares the flags and resolution
// but manages its own connection lifecycle.
func (c *Connection) ResolveSocket() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	if envSocket := os.Getenv(socketEnvVar); envSocket != "" {
		return envSocket, nil
	}

	configPath := c.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("PAVILION_CONFIG")
	}
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return "", err
		}
		return cfg.Bridge.Socket, nil
	}

	return defaultSocketPath(), nil
}

// defaultSocketPath is the built-in fallback, matching the daemon's
// config default of ${PAVILION_ROOT}/core.sock with the development
// root under ~/.cache/pavilion.
func defaultSocketPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cache", "pavilion", "core.sock")
}

// callContext returns a context with a timeout for plain socket calls.
// Every daemon action is local and fast; the budget covers a slow
// credential issue during chat.initialize.
func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
