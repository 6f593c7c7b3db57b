// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/process"
)

// ProgressInterval is the minimum spacing between "still trying"
// messages.
const ProgressInterval = 10 * time.Second

// maxLogTail bounds how much of the server log is echoed after a
// startup crash.
const maxLogTail = 64 << 10

// AwaitReady polls ready every process.PollInterval until it reports
// success. It fails with an InternalError if the server exits first or
// if timeout elapses.
func (l *Launcher) AwaitReady(ctx context.Context, server *Server, timeout time.Duration, ready func(context.Context) bool) error {
	start := l.clock.Now()
	deadline := start.Add(timeout)
	var lastProgress time.Time

	for {
		if ready(ctx) {
			l.logger.Debug("server ready",
				"pid", server.pid,
				"elapsed", l.clock.Now().Sub(start),
			)
			return nil
		}

		now := l.clock.Now()
		if !now.Before(deadline) {
			return exitcode.Errorf(exitcode.InternalError,
				"couldn't connect to server (%d) after %d seconds", server.pid, int(timeout/time.Second))
		}
		switch {
		case lastProgress.IsZero():
			fmt.Fprintf(l.stderr, "Starting local %s server (pid %d) and connecting to it...\n",
				server.product, server.pid)
			lastProgress = now
		case now.Sub(lastProgress) >= ProgressInterval:
			fmt.Fprintf(l.stderr, "... still trying to connect to local %s server (pid %d) after %d seconds ...\n",
				server.product, server.pid, int(now.Sub(start)/time.Second))
			lastProgress = now
		}

		select {
		case <-ctx.Done():
			return exitcode.Wrap(exitcode.Interrupted, ctx.Err())
		case <-server.exited:
			return l.reportCrash(server)
		case <-l.clock.After(process.PollInterval):
		}
	}
}

func (l *Launcher) reportCrash(server *Server) error {
	if server.appendLog {
		fmt.Fprintf(l.stderr, "\nServer crashed during startup. See %s\n", server.logPath)
	} else {
		fmt.Fprintf(l.stderr, "\nServer crashed during startup. Now printing %s\n", server.logPath)
		if err := copyTail(l.stderr, server.logPath, maxLogTail); err != nil {
			fmt.Fprintf(l.stderr, "(could not read %s: %v)\n", server.logPath, err)
		}
	}
	return exitcode.Errorf(exitcode.InternalError,
		"server (pid %d) crashed during startup: %v", server.pid, server.waitError)
}

// copyTail writes at most limit trailing bytes of path to w.
func copyTail(w io.Writer, path string, limit int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() > limit {
		if _, err := file.Seek(-limit, io.SeekEnd); err != nil {
			return err
		}
	}
	_, err = io.Copy(w, file)
	return err
}
