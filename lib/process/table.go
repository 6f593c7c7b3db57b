// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildclient/lib/clock"
)

// PollInterval is how often WaitForExit re-checks liveness.
const PollInterval = 100 * time.Millisecond

// Table queries processes on this host. The zero value reads the live
// system; tests point ProcRoot at a synthetic tree.
type Table struct {
	// ProcRoot is the procfs mount point. Empty means "/proc".
	ProcRoot string
}

func (t Table) procPath(pid int, elements ...string) string {
	root := t.ProcRoot
	if root == "" {
		root = "/proc"
	}
	return filepath.Join(append([]string{root, strconv.Itoa(pid)}, elements...)...)
}

// IsAlive reports whether a process with this PID exists. A process
// owned by another user (EPERM) exists.
func (Table) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Kill sends SIGKILL to pid. It refuses, returning false, when the
// process is known to serve a different output base than outputBase:
// the PID was read from a file and may have been reused. Returns true
// when the signal was delivered.
func (t Table) Kill(pid int, outputBase string) bool {
	if pid <= 0 {
		return false
	}
	if owner, known := t.OwningOutputBase(pid); known && outputBase != "" &&
		filepath.Clean(owner) != filepath.Clean(outputBase) {
		return false
	}
	return unix.Kill(pid, unix.SIGKILL) == nil
}

// OwningOutputBase returns the --output_base= argument of the process
// command line. Reports false when the command line is unreadable or
// carries no such argument.
func (t Table) OwningOutputBase(pid int) (string, bool) {
	if pid <= 0 {
		return "", false
	}
	data, err := os.ReadFile(t.procPath(pid, "cmdline"))
	if err != nil {
		return "", false
	}
	const prefix = "--output_base="
	for _, argument := range strings.Split(string(data), "\x00") {
		if strings.HasPrefix(argument, prefix) {
			return strings.TrimPrefix(argument, prefix), true
		}
	}
	return "", false
}

// WorkingDirectory returns the target of the process's cwd link. A
// directory removed after the process entered it reads back with a
// " (deleted)" suffix, which is returned as-is.
func (t Table) WorkingDirectory(pid int) (string, bool) {
	if pid <= 0 {
		return "", false
	}
	target, err := os.Readlink(t.procPath(pid, "cwd"))
	if err != nil {
		return "", false
	}
	return target, true
}

// OwnedBy reports whether the process belongs to uid. When ownership
// cannot be determined the answer is true: only a positive mismatch
// disqualifies a server.
func (t Table) OwnedBy(pid, uid int) bool {
	if pid <= 0 {
		return false
	}
	var status unix.Stat_t
	if err := unix.Stat(t.procPath(pid), &status); err != nil {
		return true
	}
	return int(status.Uid) == uid
}

// WaitForExit polls until pid is gone or grace elapses. Returns true
// when the process exited within the grace period.
func WaitForExit(ctx context.Context, clk clock.Clock, alive func(pid int) bool, pid int, grace time.Duration) bool {
	deadline := clk.Now().Add(grace)
	for {
		if !alive(pid) {
			return true
		}
		if !clk.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !alive(pid)
		case <-clk.After(PollInterval):
		}
	}
}
