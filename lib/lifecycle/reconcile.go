// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
)

// volatileFlags are server flags that may change between invocations
// without requiring a new server.
var volatileFlags = []string{
	"--option_sources=",
	"--max_idle_secs=",
	"--connect_timeout_secs=",
	"--local_startup_timeout_secs=",
	"--client_debug=",
	"--preemptible=",
}

// EnsureCorrectRunningVersion points <output_base>/install at the
// configured install base. When it pointed elsewhere (or nowhere), any
// connected server belongs to another version and is killed first; only
// that kill records the new_version restart reason.
func (c *Coordinator) EnsureCorrectRunningVersion(ctx context.Context) error {
	link := filepath.Join(c.config.OutputBase, serverdir.InstallLink)
	target, err := os.Readlink(link)
	if err == nil && filepath.Clean(target) == filepath.Clean(c.config.InstallBase) {
		return nil
	}

	if c.Connected() {
		if err := c.KillRunningServer(ctx); err != nil {
			return err
		}
		c.setRestartReason(NewVersion)
	}

	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"failed to remove old installation symlink '%s': %v", link, err)
	}
	if err := os.Symlink(c.config.InstallBase, link); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"failed to create installation symlink '%s' to '%s': %v", link, c.config.InstallBase, err)
	}

	now := c.config.Clock.Now()
	if err := os.Chtimes(c.config.InstallBase, now, now); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"failed to set timestamp on installation directory '%s': %v", c.config.InstallBase, err)
	}
	return nil
}

// KillIfDifferentStartupOptions kills the connected server when the
// command line it was started with differs, ignoring volatile flags,
// from the one this client would use. Reports whether it killed.
func (c *Coordinator) KillIfDifferentStartupOptions(ctx context.Context) (bool, error) {
	if !c.Connected() {
		return false, nil
	}
	previous, ok := serverdir.ReadCmdline(c.serverDir)
	if !ok {
		return false, nil
	}
	if len(previous) != len(c.config.Server.Argv) {
		c.config.Logger.Debug("server command line length changed",
			"previous", len(previous),
			"current", len(c.config.Server.Argv),
		)
	}
	if !StartupOptionsDiffer(previous, c.config.Server.Argv) {
		return false, nil
	}

	fmt.Fprintf(c.config.Stderr,
		"WARNING: Running %s server needs to be killed, because the startup options are different.\n",
		c.config.Product)
	if err := c.KillRunningServer(ctx); err != nil {
		return false, err
	}
	c.setRestartReason(NewOptions)
	return true, nil
}

// StartupOptionsDiffer compares two server command lines as multisets
// after removing volatile flags. Argument order does not matter.
func StartupOptionsDiffer(previous, current []string) bool {
	left := stableArguments(previous)
	right := stableArguments(current)
	if len(left) != len(right) {
		return true
	}
	slices.Sort(left)
	slices.Sort(right)
	return !slices.Equal(left, right)
}

func stableArguments(argv []string) []string {
	result := make([]string, 0, len(argv))
	for _, argument := range argv {
		if isVolatile(argument) {
			continue
		}
		result = append(result, argument)
	}
	return result
}

func isVolatile(argument string) bool {
	for _, prefix := range volatileFlags {
		if strings.HasPrefix(argument, prefix) {
			return true
		}
	}
	return false
}
