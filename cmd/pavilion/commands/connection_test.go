// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveSocketFlagWins(t *testing.T) {
	// Cannot use t.Parallel(): t.Setenv modifies process environment.
	t.Setenv(socketEnvVar, "/env.sock")

	connection := Connection{SocketPath: "/flag.sock"}
	got, err := connection.ResolveSocket()
	if err != nil {
		t.Fatalf("ResolveSocket() error: %v", err)
	}
	if got != "/flag.sock" {
		t.Errorf("ResolveSocket() = %q, want %q", got, "/flag.sock")
	}
}

func TestResolveSocketEnvironment(t *testing.T) {
	t.Setenv(socketEnvVar, "/env.sock")

	connection := Connection{}
	got, err := connection.ResolveSocket()
	if err != nil {
		t.Fatalf("ResolveSocket() error: %v", err)
	}
	if got != "/env.sock" {
		t.Errorf("ResolveSocket() = %q, want %q", got, "/env.sock")
	}
}

func TestResolveSocketConfigFile(t *testing.T) {
	t.Setenv(socketEnvVar, "")

	configPath := filepath.Join(t.TempDir(), "pavilion.yaml")
	configBody := "bridge:\n  socket: /from-config.sock\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	connection := Connection{ConfigPath: configPath}
	got, err := connection.ResolveSocket()
	if err != nil {
		t.Fatalf("ResolveSocket() error: %v", err)
	}
	if got != "/from-config.sock" {
		t.Errorf("ResolveSocket() = %q, want %q", got, "/from-config.sock")
	}
}

func TestResolveSocketConfigEnvironment(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pavilion.yaml")
	configBody := "bridge:\n  socket: /from-config-env.sock\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv(socketEnvVar, "")
	t.Setenv("PAVILION_CONFIG", configPath)

	connection := Connection{}
	got, err := connection.ResolveSocket()
	if err != nil {
		t.Fatalf("ResolveSocket() error: %v", err)
	}
	if got != "/from-config-env.sock" {
		t.Errorf("ResolveSocket() = %q, want %q", got, "/from-config-env.sock")
	}
}

func TestResolveSocketBuiltInDefault(t *testing.T) {
	t.Setenv(socketEnvVar, "")
	t.Setenv("PAVILION_CONFIG", "")

	connection := Connection{}
	got, err := connection.ResolveSocket()
	if err != nil {
		t.Fatalf("ResolveSocket() error: %v", err)
	}

	want := filepath.Join(".cache", "pavilion", "core.sock")
	if !strings.HasSuffix(got, want) {
		t.Errorf("ResolveSocket() = %q, want suffix %q", got, want)
	}
}

func TestResolveSocketMissingConfigFile(t *testing.T) {
	t.Setenv(socketEnvVar, "")

	connection := Connection{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := connection.ResolveSocket(); err == nil {
		t.Fatal("ResolveSocket() = nil error, want failure for missing config file")
	}
}
