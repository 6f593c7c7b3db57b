// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bazel is the command-line client of the build tool. It finds or
// starts a long-lived server for the current workspace's output base,
// forwards the command to it, and streams the output back.
//
// Usage:
//
//	bazel [<startup options>] <command> [<args>]
//
// Startup options come from the client config file named by
// BAZEL_CLIENT_CONFIG, the startup lines of rc files, and the command
// line, in increasing order of precedence. See "bazel help
// startup_options" for the list.
package main

import (
	"context"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/lifecycle"
	"github.com/bureau-foundation/buildclient/lib/process"
)

// environment is everything the dispatcher takes from the process, so
// tests can run it in-process.
type environment struct {
	args    []string
	environ []string
	getenv  func(string) string

	// binaryPath locates the install archive shipped next to the client.
	binaryPath       string
	workingDirectory string
	home             string

	stdout io.Writer
	stderr io.Writer

	// isTerminal and terminalColumns describe the user's terminal, for
	// the server's output formatting.
	isTerminal      bool
	terminalColumns int

	processes lifecycle.Processes
	clock     clock.Clock
	exec      lifecycle.ExecFunc
	chdir     func(string) error
	exit      func(int)
}

func main() {
	env, err := processEnvironment()
	if err != nil {
		process.Fatal(err)
	}
	code, err := run(context.Background(), env)
	if err != nil {
		process.Fatal(err)
	}
	os.Exit(int(code))
}

func processEnvironment() (*environment, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return nil, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"could not get the current working directory: %v", err)
	}
	binaryPath, err := os.Executable()
	if err != nil {
		binaryPath = os.Args[0]
	}
	home, _ := os.UserHomeDir()

	isTerminal := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
	columns := 80
	if width, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && width > 0 {
		columns = width
	}

	return &environment{
		args:             os.Args,
		environ:          os.Environ(),
		getenv:           os.Getenv,
		binaryPath:       binaryPath,
		workingDirectory: workingDirectory,
		home:             home,
		stdout:           os.Stdout,
		stderr:           os.Stderr,
		isTerminal:       isTerminal,
		terminalColumns:  columns,
		processes:        process.Table{},
		clock:            clock.Real(),
		exec:             syscall.Exec,
		chdir:            os.Chdir,
		exit:             os.Exit,
	}, nil
}
