// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/process"
	"github.com/bureau-foundation/buildclient/lib/wire"
)

// KillRunningServer shuts the connected server down: an orderly
// shutdown command first, then SIGKILL if the server outlives
// ShutdownGrace. The coordinator is Disconnected afterwards.
//
// A server that refuses the shutdown because another command holds its
// lock yields a LockHeldNoBlockForLock error. A server that survives
// SIGKILL yields a LocalEnvironmentalError.
func (c *Coordinator) KillRunningServer(ctx context.Context) error {
	if !c.Connected() {
		return nil
	}
	pid := c.ServerPID()

	code, err := c.requestShutdown(ctx)
	if err != nil {
		c.config.Logger.Debug("shutdown request failed", "pid", pid, "error", err)
	} else if code == int(exitcode.LockHeldNoBlockForLock) {
		return exitcode.Errorf(exitcode.LockHeldNoBlockForLock,
			"server (pid=%d) is busy running another command and refused to shut down", pid)
	}
	c.disconnect()

	if c.waitForExit(ctx, pid, ShutdownGrace) {
		c.setServerPID(0)
		return nil
	}
	return c.forceKill(ctx, pid)
}

// forceKill sends SIGKILL and waits KillGrace for the server to go.
func (c *Coordinator) forceKill(ctx context.Context, pid int) error {
	fmt.Fprintf(c.config.Stderr, "Server (pid=%d) did not exit, sending SIGKILL.\n", pid)
	c.config.Processes.Kill(pid, c.config.OutputBase)
	if c.waitForExit(ctx, pid, KillGrace) {
		c.setServerPID(0)
		return nil
	}
	return exitcode.Errorf(exitcode.LocalEnvironmentalError,
		"attempted to kill stale server process (pid=%d) using SIGKILL, but it did not die in a timely fashion", pid)
}

// requestShutdown runs the shutdown command and returns its exit code.
func (c *Coordinator) requestShutdown(ctx context.Context) (int, error) {
	stream, err := c.client.Run(ctx, &wire.RunRequest{
		Cookie:            c.connection.RequestCookie,
		BlockForLock:      c.config.BlockForLock,
		ClientDescription: fmt.Sprintf("pid=%d (for shutdown)", os.Getpid()),
		Args:              [][]byte{[]byte("shutdown")},
	})
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	finished := false
	code := 0
	for {
		response, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if response.Finished {
			finished = true
			code = response.ExitCode
		}
	}
	if !finished {
		return 0, errors.New("shutdown stream ended without a final response")
	}
	return code, nil
}

// KillServerNow sends SIGKILL to the connected server without any
// orderly shutdown. Safe to call from the signal goroutine.
func (c *Coordinator) KillServerNow() bool {
	pid := c.ServerPID()
	if pid <= 0 {
		return false
	}
	return c.config.Processes.Kill(pid, c.config.OutputBase)
}

func (c *Coordinator) waitForExit(ctx context.Context, pid int, grace time.Duration) bool {
	return process.WaitForExit(ctx, c.config.Clock, c.config.Processes.IsAlive, pid, grace)
}
