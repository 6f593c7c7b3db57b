// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by the client and
// any server speaking the command protocol.
//
// Every message on the loopback command channel is a CBOR value: one
// request per connection, followed by one response (ping, cancel) or a
// sequence of responses (run). Encoding uses Core Deterministic
// Encoding (RFC 8949 §4.2), so identical messages produce identical
// bytes regardless of which side wrote them.
//
// For single messages:
//
//	data, err := codec.Marshal(request)
//	err = codec.Unmarshal(data, &request)
//
// For the connection itself:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Protocol types carry `cbor` struct tags. Argument vectors, output
// chunks, and environment values are []byte so they travel as CBOR
// byte strings and are never subject to UTF-8 validation.
package codec
