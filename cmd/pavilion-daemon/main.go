// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pavilion-club/pavilion/bridge"
	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/diag"
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/lib/clock"
	"github.com/pavilion-club/pavilion/lib/config"
	"github.com/pavilion-club/pavilion/lib/secret"
	"github.com/pavilion-club/pavilion/lib/version"
	"github.com/pavilion-club/pavilion/marketing"
	"github.com/pavilion-club/pavilion/navigate"
	"github.com/pavilion-club/pavilion/platform"
	"github.com/pavilion-club/pavilion/push"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "config file path (defaults to $PAVILION_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("pavilion-daemon %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// API keys come from the environment by name and live in locked
	// memory until shutdown. Only the env var names are loggable.
	chatKey, err := secret.FromEnv(cfg.Chat.APIKeyEnv)
	if err != nil {
		return fmt.Errorf("chat API key: %w", err)
	}
	defer chatKey.Close()

	marketingKey, err := secret.FromEnv(cfg.Marketing.APIKeyEnv)
	if err != nil {
		return fmt.Errorf("marketing API key: %w", err)
	}
	defer marketingKey.Close()

	kind, err := platform.ParseKind(cfg.Platform)
	if err != nil {
		return err
	}

	timing, err := cfg.Chat.Timing()
	if err != nil {
		return err
	}
	dedupWindow, err := cfg.Notify.DedupWindowDuration()
	if err != nil {
		return err
	}

	var table *navigate.Table
	if cfg.Notify.RoutesPath != "" {
		table, err = navigate.LoadTable(cfg.Notify.RoutesPath)
		if err != nil {
			return err
		}
		logger.Info("route table loaded", "path", cfg.Notify.RoutesPath)
	}

	chatClient, err := chat.NewClient(chat.ClientConfig{
		BaseURL: cfg.Chat.BaseURL,
		AppID:   cfg.Chat.AppID,
		APIKey:  chatKey,
		Logger:  logger.With("component", "chat"),
	})
	if err != nil {
		return err
	}

	marketingClient, err := marketing.NewClient(marketing.ClientConfig{
		BaseURL: cfg.Marketing.BaseURL,
		APIKey:  marketingKey,
		Logger:  logger.With("component", "marketing"),
	})
	if err != nil {
		return err
	}

	dialer := &chat.WebsocketDialer{
		StreamURL: streamURL(cfg.Chat.BaseURL),
		AppID:     cfg.Chat.AppID,
		Logger:    logger.With("component", "chat"),
	}

	clk := clock.Real()

	inbox, err := feed.Open(feed.Config{
		Path:   cfg.Feed.Path,
		Keep:   cfg.Feed.Keep,
		Clock:  clk,
		Logger: logger.With("component", "feed"),
	})
	if err != nil {
		return err
	}
	defer inbox.Close()

	core, err := assembleCore(ctx, coreDeps{
		platform: kind,
		clock:    clk,
		logger:   logger,
		reporter: diag.NewLogReporter(logger),
		tokens:   chatClient,
		dialer:   dialer,
		channels: chatClient,
		providers: []push.Provider{
			push.NewMarketingProvider(marketingClient),
			push.NewChatProvider(chatClient),
		},
		table:       table,
		dedupWindow: dedupWindow,
		timing:      timing,
		inbox:       inbox,
		device:      platform.NewDevice(kind),
	})
	if err != nil {
		return err
	}

	server := bridge.NewServer(cfg.Bridge.Socket, logger.With("component", "bridge"))
	core.registerActions(server)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(ctx)
	}()

	logger.Info("pavilion daemon running",
		"socket", cfg.Bridge.Socket,
		"platform", cfg.Platform,
		"environment", string(cfg.Environment),
		"version", version.Short(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Wait for the bridge server to drain active connections.
	if err := <-serverDone; err != nil {
		logger.Error("bridge server error", "error", err)
	}

	// Tear the live session down so the platform ends it now instead
	// of at the keepalive timeout.
	core.manager.Disconnect("shutdown")

	return nil
}

// logLevel maps the configured level name to a slog level. Validation
// already rejected anything else.
func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// streamURL derives the websocket stream endpoint from the REST base
// URL: same host, websocket scheme, the platform's v3 stream route.
func streamURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(trimmed, "https://"):
		trimmed = "wss://" + strings.TrimPrefix(trimmed, "https://")
	case strings.HasPrefix(trimmed, "http://"):
		trimmed = "ws://" + strings.TrimPrefix(trimmed, "http://")
	}
	return trimmed + "/v3/stream"
}
