// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle reconciles the build server for one output base
// with what the client needs, and runs a command on it.
//
// A Coordinator starts Disconnected. Connect locates a published server
// and authenticates it with a cookie ping. StartServerAndConnect
// cleans up a stale server, launches a fresh one, and waits for it to
// answer. The reconciliation steps (EnsureCorrectRunningVersion,
// KillIfDifferentStartupOptions, ConnectOrStart's working-directory
// check) each kill and restart the server when it no longer matches
// the client, and each records the first reason a restart became
// necessary. The reason is forwarded to the server on the next command.
//
// Communicate sends one command and streams its output. Cancellation
// runs on a separate listener goroutine fed by a typed action channel:
// the OS signal handler (HandleSignals) and a failed output write only
// enqueue, so neither ever blocks on the network. A cancel that
// arrives before the server has assigned a command ID is latched and
// sent as soon as the ID is known.
package lifecycle
