// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the core's standard CBOR configuration.
//
// The core speaks two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the chat platform's REST and
//     stream APIs, the marketing platform's REST API, and CLI output.
//   - CBOR for the bridge: shell↔daemon requests, responses, and
//     subscribe-stream frames over the Unix socket.
//
// Every package that touches the bridge encodes through this package
// so the whole repo shares one configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items.
//
// Buffer-oriented use:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented use (the bridge socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that only ever cross the bridge carry `cbor` struct tags.
// Types that also serve JSON (CLI --json output, shared DTOs) carry
// `json` tags only: fxamacker/cbor reads `json` tags as a fallback,
// so one tag controls naming and omitempty for both formats. Never
// put both tags on one field.
package codec
