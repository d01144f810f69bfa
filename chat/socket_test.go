// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingSink captures stream callbacks for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{closed: make(chan error, 1)}
}

func (s *recordingSink) StreamEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) StreamClosed(err error) {
	s.closed <- err
}

func (s *recordingSink) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, event := range s.events {
		types[i] = event.Type
	}
	return types
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// streamServer is a scripted chat platform stream endpoint. After the
// upgrade it sends session.open and hands the connection to script.
func streamServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Authorization"); got != "Bearer stream-token" {
			t.Errorf("Authorization = %q, want Bearer stream-token", got)
		}
		if got := request.URL.Query().Get("identity_id"); got != "member-41" {
			t.Errorf("identity_id = %q, want member-41", got)
		}

		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(Event{Type: EventSessionOpen}); err != nil {
			t.Errorf("writing session open: %v", err)
			return
		}
		if script != nil {
			script(conn)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testDialCredential(t *testing.T) *Credential {
	t.Helper()
	return &Credential{
		IdentityID:  "member-41",
		AccessToken: testBuffer(t, "stream-token"),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestDialStreamDeliversEvents(t *testing.T) {
	received := make(chan struct{})
	server := streamServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Event{
			Type:      EventMessageReceived,
			ChannelID: "direct:member-2+member-41",
			MessageID: "msg-1",
		})
		<-received
	})

	sink := newRecordingSink()
	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	stream, err := dialer.DialStream(context.Background(), testDialCredential(t), sink)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(sink.eventTypes()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for stream event")
		}
		time.Sleep(time.Millisecond)
	}
	close(received)

	types := sink.eventTypes()
	if len(types) != 1 || types[0] != EventMessageReceived {
		t.Errorf("events = %v, want [message.received]", types)
	}
	// The session.open handshake frame is consumed by the dial, not
	// delivered to the sink.
	sink.mu.Lock()
	channelID := sink.events[0].ChannelID
	sink.mu.Unlock()
	if channelID != "direct:member-2+member-41" {
		t.Errorf("ChannelID = %q, want direct:member-2+member-41", channelID)
	}
}

func TestDialStreamServerCloseReportsToSink(t *testing.T) {
	server := streamServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance"),
			time.Now().Add(time.Second))
	})

	sink := newRecordingSink()
	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	stream, err := dialer.DialStream(context.Background(), testDialCredential(t), sink)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer stream.Close()

	select {
	case err := <-sink.closed:
		if err == nil {
			t.Error("StreamClosed(nil), want the close error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for StreamClosed")
	}
}

func TestDialStreamRejectsWrongFirstFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Event{Type: EventMessageReceived})
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	_, err := dialer.DialStream(context.Background(), testDialCredential(t), newRecordingSink())
	if err == nil {
		t.Fatal("DialStream succeeded without a session.open handshake")
	}
}

func TestDialStreamUpgradeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(writer).Encode(map[string]any{
			"code":    "unauthorized",
			"message": "session token expired",
		})
	}))
	defer server.Close()

	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	_, err := dialer.DialStream(context.Background(), testDialCredential(t), newRecordingSink())
	if err == nil {
		t.Fatal("DialStream succeeded against a 401")
	}

	var platformErr *PlatformError
	if !errors.As(err, &platformErr) {
		t.Fatalf("error %v is not a *PlatformError", err)
	}
	if platformErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", platformErr.StatusCode)
	}
	if !IsCredentialError(err) {
		t.Error("IsCredentialError = false, want true")
	}
}

func TestStreamSwapToken(t *testing.T) {
	swapped := make(chan tokenSwap, 1)
	server := streamServer(t, func(conn *websocket.Conn) {
		var swap tokenSwap
		if err := conn.ReadJSON(&swap); err != nil {
			t.Errorf("reading swap frame: %v", err)
			return
		}
		swapped <- swap
	})

	sink := newRecordingSink()
	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	stream, err := dialer.DialStream(context.Background(), testDialCredential(t), sink)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer stream.Close()

	if err := stream.SwapToken(testBuffer(t, "fresh-token")); err != nil {
		t.Fatalf("SwapToken: %v", err)
	}

	select {
	case swap := <-swapped:
		if swap.Type != "session.refresh" {
			t.Errorf("swap type = %q, want session.refresh", swap.Type)
		}
		if swap.AccessToken != "fresh-token" {
			t.Errorf("swap token = %q, want fresh-token", swap.AccessToken)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for swap frame")
	}
}

func TestStreamCloseSuppressesCallback(t *testing.T) {
	hold := make(chan struct{})
	server := streamServer(t, func(conn *websocket.Conn) {
		<-hold
	})
	defer close(hold)

	sink := newRecordingSink()
	dialer := &WebsocketDialer{StreamURL: wsURL(server), AppID: "PV-APP-01"}
	stream, err := dialer.DialStream(context.Background(), testDialCredential(t), sink)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A deliberate Close must not look like a stream failure.
	select {
	case err := <-sink.closed:
		t.Errorf("StreamClosed(%v) called after deliberate Close", err)
	case <-time.After(200 * time.Millisecond):
	}
}
