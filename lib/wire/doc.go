// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire is the command protocol between the client and a build
// server: message types, a client, and a server skeleton.
//
// The transport is loopback TCP with one connection per call. The
// caller writes a single CBOR request whose "action" field selects the
// call:
//
//	ping    PingRequest    -> PingResponse
//	run     RunRequest     -> RunResponse, RunResponse, ... (last has Finished)
//	cancel  CancelRequest  -> CancelResponse
//
// Every request carries the request cookie from the server directory.
// Every response carries the response cookie, which the client
// verifies; a server that cannot produce it is not the server the
// client located.
//
// A run stream has no read timeout: builds run for as long as they
// run. Ping and cancel use the caller's context deadline.
package wire
