// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package launcher

import "log/slog"

// ApplySchedulingHints only logs where the hints are unsupported.
func ApplySchedulingHints(logger *slog.Logger, pid int, batchCPU bool, ioNiceLevel int) {
	if batchCPU || ioNiceLevel >= 0 {
		logger.Debug("scheduling hints are not supported on this platform", "pid", pid)
	}
}
