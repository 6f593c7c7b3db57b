// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/launcher"
	"github.com/bureau-foundation/buildclient/lib/lifecycle"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/startup"
)

// runServerMode replaces the client with a server that is not
// supervised by any client. The server directory is populated the way
// the launcher would, so later clients can find the server.
func (inv *invocation) runServerMode() (exitcode.Code, error) {
	if inv.coordinator.Connected() {
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"exec-server failed, please shut down existing server pid=%d and retry.", inv.coordinator.ServerPID())
	}

	serverDir := inv.spec.ServerDirectory
	if err := serverdir.Ensure(serverDir); err != nil {
		return 0, exitcode.Wrap(exitcode.LocalEnvironmentalError, err)
	}
	pid := os.Getpid()
	if err := serverdir.WritePID(serverDir, pid); err != nil {
		return 0, exitcode.Wrap(exitcode.LocalEnvironmentalError, err)
	}
	if err := serverdir.WriteCmdline(serverDir, inv.spec.Argv); err != nil {
		return 0, exitcode.Wrap(exitcode.LocalEnvironmentalError, err)
	}
	if err := inv.env.chdir(inv.serverDirectory); err != nil {
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"changing directory into %s failed: %v", inv.serverDirectory, err)
	}
	launcher.ApplySchedulingHints(inv.logger, pid, inv.spec.BatchCPUScheduling, inv.spec.IONiceLevel)

	return inv.exec(inv.spec.Argv)
}

// runBatchMode replaces the client with a one-shot server that runs
// the command itself.
func (inv *invocation) runBatchMode(ctx context.Context) (exitcode.Code, error) {
	if inv.coordinator.Connected() {
		if err := inv.coordinator.KillRunningServer(ctx); err != nil {
			return 0, err
		}
	}
	if inv.commandLine.Command == shutdownCommand {
		name := inv.product.Name()
		fmt.Fprintf(inv.env.stderr,
			"WARNING: Running command \"shutdown\" in batch mode. Batch mode is triggered when not running %s within a workspace. "+
				"If you intend to shutdown an existing %s server, run \"%s shutdown\" from the directory where it was started.\n",
			name, name, startup.LowercaseName(inv.product))
	}

	request := inv.commandInvocation()
	argv := slices.Concat(inv.spec.Argv, lifecycle.CommandArgs(request, inv.coordinator.RestartReason()))
	if err := inv.env.chdir(inv.serverDirectory); err != nil {
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"changing directory into %s failed: %v", inv.serverDirectory, err)
	}
	return inv.exec(argv)
}

// runClientServerMode sends the command to a long-lived server,
// starting one when needed, and relays its output.
func (inv *invocation) runClientServerMode(ctx context.Context) (exitcode.Code, error) {
	if err := inv.coordinator.ConnectOrStart(ctx); err != nil {
		return 0, err
	}
	stop := lifecycle.HandleSignals(inv.coordinator, inv.env.stderr, inv.env.exit)
	defer stop()

	code, err := inv.coordinator.Communicate(ctx, inv.commandInvocation())
	if err != nil {
		return 0, err
	}
	return code, nil
}

// exec replaces the process with the server. It returns only on
// failure, or when the exec function is a test double.
func (inv *invocation) exec(argv []string) (exitcode.Code, error) {
	inv.logger.Debug("executing server", "executable", inv.spec.Executable, "argv", argv)
	if err := inv.env.exec(inv.spec.Executable, argv, inv.spec.Environment); err != nil {
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"failed to execute %s: %v", inv.spec.Executable, err)
	}
	return exitcode.Success, nil
}
