// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package launcher

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// ioprio_set(2) constants. x/sys/unix exposes the syscall number but
// not the encoding.
const (
	ioprioWhoProcess = 1
	ioprioClassBE    = 2
	ioprioClassShift = 13
	ioprioLevelLimit = 7
)

// ApplySchedulingHints requests SCHED_BATCH and a best-effort IO
// priority for pid. Failures are logged, never fatal.
func ApplySchedulingHints(logger *slog.Logger, pid int, batchCPU bool, ioNiceLevel int) {
	if batchCPU {
		if err := unix.SchedSetAttr(pid, &unix.SchedAttr{Policy: unix.SCHED_BATCH}, 0); err != nil {
			logger.Warn("could not set SCHED_BATCH on server", "pid", pid, "error", err)
		}
	}
	if ioNiceLevel >= 0 {
		level := min(ioNiceLevel, ioprioLevelLimit)
		priority := ioprioClassBE<<ioprioClassShift | level
		_, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, uintptr(pid), uintptr(priority))
		if errno != 0 {
			logger.Warn("could not set IO priority on server", "pid", pid, "level", level, "error", errno)
		}
	}
}
