// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavilion-club/pavilion/lib/netutil"
	"github.com/pavilion-club/pavilion/lib/secret"
)

// Keepalive and handshake tuning for the live stream. The ping period
// must be comfortably below the pong wait so a single delayed pong
// does not kill a healthy stream.
const (
	streamPongWait      = 30 * time.Second
	streamWriteWait     = 10 * time.Second
	streamPingPeriod    = 25 * time.Second
	streamHandshakeWait = 30 * time.Second
)

// Event types the platform delivers over the live stream. Unknown
// types are tolerated and skipped so the platform can add frames
// without breaking deployed clients.
const (
	EventSessionOpen     = "session.open"
	EventMessageReceived = "message.received"
	EventChannelUpdated  = "channel.updated"
	EventSessionClosed   = "session.closed"
)

// Event is one decoded frame from the live stream. Message frames
// carry routing metadata only, never message bodies; the platform's
// UI surfaces fetch content themselves.
type Event struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	// SentAt is the platform timestamp in Unix milliseconds.
	SentAt int64 `json:"sent_at,omitempty"`
}

// EventSink receives decoded events and the terminal close signal from
// a Stream. Both methods are called from the stream's read goroutine.
type EventSink interface {
	// StreamEvent delivers one decoded event.
	StreamEvent(event Event)

	// StreamClosed reports that the stream ended on its own: a read
	// error, a server close frame, or a missed keepalive. It is never
	// called after Close.
	StreamClosed(err error)
}

// Stream is an established live session stream.
type Stream interface {
	// SwapToken rebinds the session to a new access token in place,
	// without reconnecting. Returns an error when the write fails;
	// the caller then falls back to close-and-redial.
	SwapToken(token *secret.Buffer) error

	// Close tears the stream down. The sink receives no callback.
	Close() error
}

// Dialer opens live session streams. Production uses WebsocketDialer;
// tests inject a scripted implementation.
type Dialer interface {
	DialStream(ctx context.Context, credential *Credential, sink EventSink) (Stream, error)
}

// WebsocketDialer opens the platform's websocket stream endpoint.
type WebsocketDialer struct {
	// StreamURL is the websocket endpoint
	// (e.g., "wss://chat.example.com/v3/stream").
	StreamURL string
	// AppID is sent on the upgrade request, matching the REST client.
	AppID string
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Dialer overrides websocket.DefaultDialer when set.
	Dialer *websocket.Dialer
}

var _ Dialer = (*WebsocketDialer)(nil)

// DialStream connects, authenticates with the credential's access
// token, and waits for the server's session.open frame. On return the
// session is live and the read loop is running.
func (d *WebsocketDialer) DialStream(ctx context.Context, credential *Credential, sink EventSink) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	streamURL := d.StreamURL + "?identity_id=" + url.QueryEscape(credential.IdentityID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential.AccessToken.String())
	header.Set("X-App-ID", d.AppID)

	conn, response, err := dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		// The platform rejects bad credentials at the HTTP upgrade
		// with its usual error shape; surface it typed so the manager
		// can classify 401s.
		if response != nil {
			defer response.Body.Close()
			raw := netutil.ErrorBody(response.Body)
			var platformErr PlatformError
			if jsonErr := json.Unmarshal([]byte(raw), &platformErr); jsonErr == nil && platformErr.Code != "" {
				platformErr.StatusCode = response.StatusCode
				return nil, fmt.Errorf("chat: stream dial rejected: %w", &platformErr)
			}
			return nil, fmt.Errorf("chat: stream dial rejected: %w", &PlatformError{
				Code:       ErrCodeInternal,
				Message:    raw,
				StatusCode: response.StatusCode,
			})
		}
		return nil, fmt.Errorf("chat: dialing stream: %w", err)
	}

	// The server's first frame confirms the session. Anything else
	// means the session was not established.
	if err := conn.SetReadDeadline(time.Now().Add(streamHandshakeWait)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chat: setting handshake deadline: %w", err)
	}
	var first Event
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chat: waiting for session open: %w", err)
	}
	if first.Type != EventSessionOpen {
		conn.Close()
		return nil, fmt.Errorf("chat: unexpected first stream event %q", first.Type)
	}

	stream := &websocketStream{
		conn:   conn,
		sink:   sink,
		logger: logger,
		done:   make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go stream.readLoop()
	go stream.pingLoop()
	return stream, nil
}

// websocketStream is the production Stream over gorilla/websocket.
//
// Write discipline: WriteControl is safe for concurrent use, so the
// ping loop and Close need no coordination. SwapToken uses WriteJSON
// and is serialized by the Manager's refresh guard.
type websocketStream struct {
	conn   *websocket.Conn
	sink   EventSink
	logger *slog.Logger

	// closed is set by Close and suppresses the StreamClosed callback
	// when the read loop subsequently fails on the dead connection.
	closed atomic.Bool

	// done is closed when the read loop exits, stopping the ping loop.
	done chan struct{}
}

var _ Stream = (*websocketStream)(nil)

func (s *websocketStream) readLoop() {
	defer close(s.done)
	s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	for {
		var event Event
		if err := s.conn.ReadJSON(&event); err != nil {
			if s.closed.Load() {
				return
			}
			s.conn.Close()
			s.sink.StreamClosed(err)
			return
		}
		// Any frame proves liveness, not just pongs.
		s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
		s.sink.StreamEvent(event)
	}
}

func (s *websocketStream) pingLoop() {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
			if err != nil {
				// The read loop observes the dead connection and
				// reports it; the ping loop just stops.
				if !s.closed.Load() && !netutil.IsExpectedCloseError(err) {
					s.logger.Debug("stream ping failed", "error", err)
				}
				return
			}
		}
	}
}

// tokenSwap rebinds the live session to a new access token without
// reconnecting.
type tokenSwap struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

func (s *websocketStream) SwapToken(token *secret.Buffer) error {
	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := s.conn.WriteJSON(tokenSwap{Type: "session.refresh", AccessToken: token.String()}); err != nil {
		return fmt.Errorf("chat: swapping stream token: %w", err)
	}
	return nil
}

func (s *websocketStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Best effort: tell the server before dropping the connection so
	// the session ends now rather than at the keepalive timeout.
	deadline := time.Now().Add(streamWriteWait)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
