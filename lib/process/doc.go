// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process answers liveness and identity questions about server
// processes and provides the client's exit helper.
//
// Every query is total over PIDs. A PID that is invalid, already dead,
// or owned by someone the client cannot inspect produces false or
// "unknown", never an error, because a stale PID is the expected shape
// of a crashed server and drives cleanup rather than aborting.
//
// Identity queries read /proc. Where /proc is unavailable (macOS,
// containers that mask it, sandboxes that deny ptrace-style reads) they
// report unknown, and callers treat unknown as "alive, unknown cwd".
package process
