// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the client's
// waits: server startup polling, progress cadence, and the grace
// periods after shutdown and kill requests.
//
// Production code holds a Clock field set to Real(). Tests set it to
// Fake() and drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	coordinator := &lifecycle.Coordinator{Clock: c, ...}
//	go coordinator.KillRunningServer(ctx)
//	c.WaitForTimers(1)
//	c.Advance(60 * time.Second)
//
// Loops that poll until an external condition holds register a new
// timer on every iteration. [FakeClock.AdvanceUntil] steps such a loop
// until the goroutine under test signals completion, without the test
// knowing how many iterations will run.
package clock
