// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pavilion-club/pavilion/bridge"
	"github.com/pavilion-club/pavilion/cmd/pavilion/cli"
	"github.com/pavilion-club/pavilion/feed"
	"github.com/pavilion-club/pavilion/lib/codec"
	"github.com/pavilion-club/pavilion/lib/testutil"
	"github.com/pavilion-club/pavilion/navigate"
)

// TestRootCoversSocketSurface pins the command tree to the daemon's
// socket API: every action the daemon serves has a CLI path, and no
// paths point at actions that do not exist.
func TestRootCoversSocketSurface(t *testing.T) {
	var leaves []string
	walkCommands(Root(), nil, func(command *cli.Command, path []string) {
		if command.Run != nil && len(command.Subcommands) == 0 {
			leaves = append(leaves, strings.Join(path[1:], " "))
		}
	})

	want := []string{
		"status",
		"chat initialize",
		"chat retry",
		"chat disconnect",
		"chat channel",
		"identity set",
		"identity clear",
		"device token",
		"device permission",
		"notify foreground",
		"notify opened",
		"router ready",
		"router suspended",
		"feed list",
		"stream",
		"version",
	}

	got := make(map[string]bool, len(leaves))
	for _, leaf := range leaves {
		got[leaf] = true
	}
	for _, path := range want {
		if !got[path] {
			t.Errorf("command tree missing %q", path)
		}
	}
	if len(leaves) != len(want) {
		t.Errorf("tree has %d leaf commands, want %d: %v", len(leaves), len(want), leaves)
	}
}

// TestTreeDescribesItself catches bare nodes: every command needs a
// summary for its parent's listing, and groups need subcommands.
func TestTreeDescribesItself(t *testing.T) {
	walkCommands(Root(), nil, func(command *cli.Command, path []string) {
		name := strings.Join(path, " ")
		if len(path) > 1 && command.Summary == "" {
			t.Errorf("%s: missing Summary", name)
		}
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: neither Run nor Subcommands", name)
		}
	})
}

// walkCommands recursively visits every command in the tree, calling
// visit for each node with the accumulated command path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := make([]string, len(path)+1)
	copy(current, path)
	current[len(path)] = command.Name
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

// fakeDaemon serves scripted actions on a temp socket so command Run
// functions can be exercised end to end.
type fakeDaemon struct {
	socket string
	server *bridge.Server

	mu   sync.Mutex
	raws map[string][]byte
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()

	daemon := &fakeDaemon{
		socket: filepath.Join(testutil.SocketDir(t), "core.sock"),
		raws:   make(map[string][]byte),
	}
	daemon.server = bridge.NewServer(daemon.socket, slog.New(slog.DiscardHandler))
	return daemon
}

// handle registers a plain action that records its raw request and
// responds with result.
func (d *fakeDaemon) handle(action string, result any) {
	d.server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
		d.mu.Lock()
		d.raws[action] = raw
		d.mu.Unlock()
		return result, nil
	})
}

// handleError registers a plain action that fails with err.
func (d *fakeDaemon) handleError(action string, err error) {
	d.server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
		return nil, err
	})
}

// start serves until the test ends.
func (d *fakeDaemon) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- d.server.Serve(ctx)
	}()

	for {
		if _, err := os.Stat(d.socket); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", d.socket)
		}
		runtime.Gosched()
	}

	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
}

// request decodes the recorded raw request for action into out.
func (d *fakeDaemon) request(t *testing.T, action string, out any) {
	t.Helper()

	d.mu.Lock()
	raw, ok := d.raws[action]
	d.mu.Unlock()
	if !ok {
		t.Fatalf("daemon never received action %q", action)
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		t.Fatalf("decoding recorded %q request: %v", action, err)
	}
}

// execute runs a command line through a fresh tree with the daemon's
// socket appended.
func (d *fakeDaemon) execute(t *testing.T, args ...string) error {
	t.Helper()
	return Root().Execute(append(args, "--socket", d.socket))
}

func TestStatusCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("status", statusResult{
		State:      "open",
		Generation: 1,
		SignedIn:   true,
		Device:     deviceInfo{Platform: "ios", HasToken: true, Permission: "granted"},
		Registrations: []registrationStatus{
			{Provider: "chat", Registered: true},
			{Provider: "marketing", Registered: false, Error: "marketing: register device: 503"},
		},
		FeedSize:      3,
		UptimeSeconds: 42,
	})
	daemon.start(t)

	if err := daemon.execute(t, "status", "--json"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := daemon.execute(t, "status"); err != nil {
		t.Fatalf("status (text): %v", err)
	}
}

func TestChatChannelCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("chat.channel", channelResult{
		ChannelID: "dm-41-7",
		URL:       "pavilion-chat://channel/dm-41-7",
	})
	daemon.start(t)

	if err := daemon.execute(t, "chat", "channel", "member-41", "member-7"); err != nil {
		t.Fatalf("chat channel: %v", err)
	}

	var request struct {
		Participants []string `cbor:"participants"`
	}
	daemon.request(t, "chat.channel", &request)
	if len(request.Participants) != 2 || request.Participants[0] != "member-41" || request.Participants[1] != "member-7" {
		t.Errorf("participants = %v, want [member-41 member-7]", request.Participants)
	}
}

func TestChatChannelRequiresTwoMembers(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.start(t)

	err := daemon.execute(t, "chat", "channel", "member-41")
	if err == nil {
		t.Fatal("chat channel with one member succeeded, want error")
	}
	if !strings.Contains(err.Error(), "two member IDs") {
		t.Errorf("error = %q, want mention of two member IDs", err)
	}
}

func TestChatLifecycleCommands(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("chat.initialize", sessionResult{State: "open", Generation: 0})
	daemon.handle("chat.retry", sessionResult{State: "open", Generation: 1})
	daemon.handle("chat.disconnect", sessionResult{State: "closed", Generation: 1})
	daemon.start(t)

	for _, verb := range []string{"initialize", "retry", "disconnect"} {
		if err := daemon.execute(t, "chat", verb); err != nil {
			t.Fatalf("chat %s: %v", verb, err)
		}
	}
}

func TestIdentitySetCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("identity.update", identityResult{
		IdentityID: "member-41",
		GivenName:  "Ada",
		HasEmail:   true,
	})
	daemon.start(t)

	tokenPath := filepath.Join(t.TempDir(), "id-token")
	if err := os.WriteFile(tokenPath, []byte("header.claims.signature\n"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}

	if err := daemon.execute(t, "identity", "set", "--token-file", tokenPath); err != nil {
		t.Fatalf("identity set: %v", err)
	}

	var request struct {
		IDToken string `cbor:"id_token"`
	}
	daemon.request(t, "identity.update", &request)
	if request.IDToken != "header.claims.signature" {
		t.Errorf("id_token = %q, want the trimmed file content", request.IDToken)
	}
}

func TestIdentitySetRequiresTokenFile(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.start(t)

	err := daemon.execute(t, "identity", "set")
	if err == nil {
		t.Fatal("identity set without --token-file succeeded, want error")
	}
	if !strings.Contains(err.Error(), "--token-file") {
		t.Errorf("error = %q, want mention of --token-file", err)
	}
}

func TestDevicePermissionCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("device.permission", deviceResult{
		Device: deviceInfo{Platform: "ios", Permission: "granted"},
	})
	daemon.start(t)

	if err := daemon.execute(t, "device", "permission", "granted"); err != nil {
		t.Fatalf("device permission: %v", err)
	}

	var request struct {
		Status string `cbor:"status"`
	}
	daemon.request(t, "device.permission", &request)
	if request.Status != "granted" {
		t.Errorf("status = %q, want %q", request.Status, "granted")
	}
}

func TestDeviceTokenCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("device.token", deviceResult{
		Device: deviceInfo{Platform: "ios", HasToken: true, Permission: "granted"},
	})
	daemon.start(t)

	if err := daemon.execute(t, "device", "token", "apns-token-1"); err != nil {
		t.Fatalf("device token: %v", err)
	}

	var request struct {
		Token string `cbor:"token"`
	}
	daemon.request(t, "device.token", &request)
	if request.Token != "apns-token-1" {
		t.Errorf("token = %q, want %q", request.Token, "apns-token-1")
	}
}

func TestDeviceTokenClear(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("device.token", deviceResult{
		Device: deviceInfo{Platform: "ios", Permission: "granted"},
	})
	daemon.start(t)

	if err := daemon.execute(t, "device", "token", "--clear"); err != nil {
		t.Fatalf("device token --clear: %v", err)
	}

	var request struct {
		Token string `cbor:"token"`
	}
	daemon.request(t, "device.token", &request)
	if request.Token != "" {
		t.Errorf("token = %q, want empty after --clear", request.Token)
	}
}

func TestNotifyForegroundCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("notify.foreground", nil)
	daemon.start(t)

	err := daemon.execute(t, "notify", "foreground",
		"--provider", "chat",
		"--title", "New message",
		"--data", "channel_id=club-lounge")
	if err != nil {
		t.Fatalf("notify foreground: %v", err)
	}

	var request struct {
		Payload navigate.Payload `cbor:"payload"`
	}
	daemon.request(t, "notify.foreground", &request)
	if request.Payload.Provider != "chat" {
		t.Errorf("provider = %q, want %q", request.Payload.Provider, "chat")
	}
	if request.Payload.Title != "New message" {
		t.Errorf("title = %q, want %q", request.Payload.Title, "New message")
	}
	if request.Payload.Data["channel_id"] != "club-lounge" {
		t.Errorf("data = %v, want channel_id=club-lounge", request.Payload.Data)
	}
}

func TestNotifyOpenedFromPayloadFile(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("notify.opened", nil)
	daemon.start(t)

	payloadPath := filepath.Join(t.TempDir(), "payload.json")
	payloadBody := `{"provider":"chat","title":"New message","data":{"deep_link":"app://inbox"}}`
	if err := os.WriteFile(payloadPath, []byte(payloadBody), 0o600); err != nil {
		t.Fatalf("writing payload file: %v", err)
	}

	if err := daemon.execute(t, "notify", "opened", "--payload-file", payloadPath); err != nil {
		t.Fatalf("notify opened: %v", err)
	}

	var request struct {
		Payload navigate.Payload `cbor:"payload"`
	}
	daemon.request(t, "notify.opened", &request)
	if request.Payload.Data["deep_link"] != "app://inbox" {
		t.Errorf("data = %v, want deep_link=app://inbox", request.Payload.Data)
	}
}

func TestRouterCommands(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("router.ready", nil)
	daemon.handle("router.suspended", nil)
	daemon.start(t)

	if err := daemon.execute(t, "router", "ready"); err != nil {
		t.Fatalf("router ready: %v", err)
	}
	if err := daemon.execute(t, "router", "suspended"); err != nil {
		t.Fatalf("router suspended: %v", err)
	}
}

func TestFeedListCommand(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handle("feed.list", feedListResult{
		Records: []feed.Record{
			{
				Provider:   "chat",
				Title:      "New message",
				Target:     "app://chat/channel?channel=club-lounge",
				ReceivedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		},
	})
	daemon.start(t)

	if err := daemon.execute(t, "feed", "list", "--limit", "7"); err != nil {
		t.Fatalf("feed list: %v", err)
	}

	var request struct {
		Limit int `cbor:"limit"`
	}
	daemon.request(t, "feed.list", &request)
	if request.Limit != 7 {
		t.Errorf("limit = %d, want 7", request.Limit)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.handleError("chat.initialize", context.DeadlineExceeded)
	daemon.start(t)

	err := daemon.execute(t, "chat", "initialize")
	if err == nil {
		t.Fatal("chat initialize succeeded, want server error")
	}
	if !strings.Contains(err.Error(), "deadline exceeded") {
		t.Errorf("error = %q, want the server's message", err)
	}
}

func TestUnreachableSocketSurfaces(t *testing.T) {
	root := Root()
	err := root.Execute([]string{"status", "--socket", filepath.Join(t.TempDir(), "absent.sock")})
	if err == nil {
		t.Fatal("status against a missing socket succeeded, want error")
	}
	if !strings.Contains(err.Error(), "connecting") {
		t.Errorf("error = %q, want a connection failure", err)
	}
}

func TestStreamCommandFollowsFrames(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.server.HandleStream("subscribe", func(ctx context.Context, raw []byte, conn net.Conn) {
		encoder := codec.NewEncoder(conn)
		frames := []streamFrame{
			{Type: "state", State: "closed"},
			{Type: "registration", Registrations: []registrationStatus{
				{Provider: "chat"},
				{Provider: "marketing"},
			}},
			{Type: "heartbeat"},
		}
		for _, frame := range frames {
			if err := encoder.Encode(frame); err != nil {
				return
			}
		}
	})
	daemon.start(t)

	// The daemon ends the stream after three frames; the command
	// reports the ended stream as an error, per its contract.
	err := daemon.execute(t, "stream", "--json", "--heartbeats")
	if err == nil {
		t.Fatal("stream exited nil after server close, want error")
	}
	if !strings.Contains(err.Error(), "reading frame") {
		t.Errorf("error = %q, want a frame read failure", err)
	}
}
