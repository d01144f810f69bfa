// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge implements the CBOR request-response protocol spoken
// on the daemon's Unix control socket.
//
// The platform shell, the pavilion CLI, and the watch TUI all drive
// the client core through this socket. Every request is a CBOR map
// with an "action" field naming the operation; every response is an
// envelope of the form {ok, error, data}. CBOR values are
// self-delimiting, so no framing protocol is needed.
//
// Two kinds of actions exist. Plain actions ([Server.Handle]) follow a
// strict one-request-per-connection model: the client writes a
// request, the server writes one [Response], and the connection
// closes. Stream actions ([Server.HandleStream]) hand the connection
// to the handler after the request is decoded; the handler writes CBOR
// frames for as long as the subscription lives. There is no response
// envelope on a stream; the frames are the response.
//
// [Client.Call] and [Client.Subscribe] are the matching client sides.
// The socket carries no authentication: it lives in the user's runtime
// directory and filesystem permissions are the trust boundary.
package bridge
