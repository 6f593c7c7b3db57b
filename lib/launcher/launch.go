// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
)

// Spec describes one server launch.
type Spec struct {
	// Product is the user-facing product name used in progress
	// messages ("Bazel").
	Product string

	// Executable is the program to run. Argv[0] is passed to it
	// verbatim, so it may be a display name rather than a path.
	Executable string
	Argv       []string

	// Environment is the complete environment of the child.
	Environment []string

	// WorkingDirectory is the child's working directory. Empty
	// inherits the client's.
	WorkingDirectory string

	// ServerDirectory receives the cmdline record.
	ServerDirectory string

	// LogPath receives the child's stdout and stderr. With AppendLog
	// the file is opened for append instead of truncated.
	LogPath   string
	AppendLog bool

	// BatchCPUScheduling requests SCHED_BATCH for the server.
	BatchCPUScheduling bool

	// IONiceLevel is a best-effort IO priority (0-7). Negative leaves
	// the default priority.
	IONiceLevel int
}

// Server is a launched server process.
type Server struct {
	pid       int
	product   string
	logPath   string
	appendLog bool
	exited    chan struct{}
	waitError error
}

// PID returns the server's process ID.
func (s *Server) PID() int { return s.pid }

// LogPath returns the file receiving the server's output.
func (s *Server) LogPath() string { return s.logPath }

// Exited is closed once the server process has terminated and been
// reaped.
func (s *Server) Exited() <-chan struct{} { return s.exited }

// Launcher spawns servers and waits for them to come up.
type Launcher struct {
	clock  clock.Clock
	stderr io.Writer
	logger *slog.Logger
}

// New returns a Launcher that prints user-facing progress to stderr.
func New(clk clock.Clock, stderr io.Writer, logger *slog.Logger) *Launcher {
	return &Launcher{clock: clk, stderr: stderr, logger: logger}
}

// Launch spawns the server described by spec and returns without
// waiting for it to become reachable.
func (l *Launcher) Launch(spec Spec) (*Server, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("launching server: empty argv")
	}
	if err := serverdir.Ensure(spec.ServerDirectory); err != nil {
		return nil, err
	}
	if err := serverdir.WriteCmdline(spec.ServerDirectory, spec.Argv); err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if spec.AppendLog {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	logFile, err := os.OpenFile(spec.LogPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening server log %s: %w", spec.LogPath, err)
	}
	defer logFile.Close()

	cmd := &exec.Cmd{
		Path:   spec.Executable,
		Args:   spec.Argv,
		Env:    spec.Environment,
		Dir:    spec.WorkingDirectory,
		Stdout: logFile,
		Stderr: logFile,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true,
		},
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting server %s: %w", spec.Executable, err)
	}

	server := &Server{
		pid:       cmd.Process.Pid,
		product:   spec.Product,
		logPath:   spec.LogPath,
		appendLog: spec.AppendLog,
		exited:    make(chan struct{}),
	}
	go func() {
		server.waitError = cmd.Wait()
		close(server.exited)
		l.logger.Debug("server process exited",
			"pid", server.pid,
			"error", server.waitError,
		)
	}()

	ApplySchedulingHints(l.logger, server.pid, spec.BatchCPUScheduling, spec.IONiceLevel)

	l.logger.Debug("server launched",
		"pid", server.pid,
		"executable", spec.Executable,
		"working_directory", spec.WorkingDirectory,
		"log", spec.LogPath,
	)
	return server, nil
}
