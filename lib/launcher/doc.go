// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package launcher starts a build server as a detached background
// process and waits for it to become reachable.
//
// Launch spawns the server in its own session with stdin from
// /dev/null and both output streams redirected to the server log. The
// client never waits on the server's lifetime: a background goroutine
// reaps the child so that an early crash is observable (a zombie still
// answers signal 0) without blocking the caller.
//
// AwaitReady polls a caller-supplied readiness check (normally locate + ping)
// until it succeeds, the server dies, or the startup timeout elapses,
// printing progress to the user's stderr while it waits.
//
// ServerEnvironment prepares the environment handed to the spawn call;
// the client's own environment is never modified.
package launcher
