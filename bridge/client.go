// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pavilion-club/pavilion/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// control socket. This is separate from the server's read/write
// timeouts; it covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request. Matched to the server's
// readTimeout + writeTimeout to account for handler execution time.
const responseReadTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR response.
// Matches the server's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// CallError is returned by Call when the server responds with
// ok=false. It wraps the server's error message and the action that
// failed.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("bridge: action %q: %s", e.Action, e.Message)
}

// Client sends CBOR requests to the daemon's control socket. Each Call
// opens a new connection (matching the server's one-request-per-
// connection model), sends the request, reads the response, and closes
// the connection. Subscribe opens a long-lived connection instead.
type Client struct {
	socketPath string
}

// NewClient creates a client for the control socket at socketPath. No
// connection is made until Call or Subscribe.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends a CBOR request for a plain action and decodes the
// response.
//
// The fields parameter may contain any handler-specific request
// fields; the client adds "action" automatically. Pass nil for actions
// that take no parameters. The caller must not include an "action" key
// in the fields map.
//
// On success (response ok=true), if result is non-nil and the response
// contains data, the data is CBOR-decoded into result.
//
// On failure (response ok=false), returns a *CallError containing the
// server's error message. Connection and encoding errors are returned
// as plain errors (not *CallError).
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	response, err := c.send(ctx, buildRequest(action, fields))
	if err != nil {
		return fmt.Errorf("bridge: calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &CallError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("bridge: decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

// Subscribe sends a stream-action request and returns a Stream for
// reading the frames the server writes. The connection stays open
// until the stream is closed, the server ends it, or ctx is cancelled.
//
// fields may carry subscription options; pass nil for none.
func (c *Client) Subscribe(ctx context.Context, action string, fields map[string]any) (*Stream, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("bridge: connecting to %s: %w", c.socketPath, err)
	}

	if err := codec.NewEncoder(conn).Encode(buildRequest(action, fields)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: sending %q request: %w", action, err)
	}

	stream := &Stream{
		conn:    conn,
		decoder: codec.NewDecoder(conn),
		done:    make(chan struct{}),
	}

	// Close the connection when the context is cancelled. This
	// unblocks a Next call pending in the decoder's Read. The done
	// channel releases the watcher when the stream is closed first.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

// buildRequest constructs the CBOR request map: the caller's fields
// (if any) plus the "action" key.
func buildRequest(action string, fields map[string]any) map[string]any {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action
	return request
}

// send connects to the socket, writes the request, and reads the
// response. Each call creates a new connection.
func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close the write side. CBOR is self-delimiting so this
	// isn't strictly necessary, but it lets the server's read side
	// see EOF cleanly.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}

// Stream is a held subscription connection. Frames are read with Next;
// Close ends the subscription. A Stream is safe for one reader plus
// concurrent Close.
type Stream struct {
	conn    net.Conn
	decoder *codec.Decoder

	closeOnce sync.Once
	done      chan struct{}
}

// Next decodes the next CBOR frame from the stream into frame. Blocks
// until a frame arrives. Returns an error when the stream ends: server
// close, Close from another goroutine, or cancellation of the
// Subscribe context.
func (s *Stream) Next(frame any) error {
	if err := s.decoder.Decode(frame); err != nil {
		return fmt.Errorf("bridge: reading frame: %w", err)
	}
	return nil
}

// Close ends the subscription and releases the connection. Safe to
// call multiple times.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}
