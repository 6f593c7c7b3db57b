// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger creates the client's structured logger. Text output when
// stderr is a terminal, JSON when it is piped or redirected. The level
// starts at Warn; --client_debug lowers it once startup options are
// parsed.
func newLogger(stderr io.Writer, level *slog.LevelVar) *slog.Logger {
	level.Set(slog.LevelWarn)
	options := &slog.HandlerOptions{Level: level}
	if file, ok := stderr.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}
