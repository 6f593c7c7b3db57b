// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/buildclient/lib/config"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/installbase"
	"github.com/bureau-foundation/buildclient/lib/launcher"
	"github.com/bureau-foundation/buildclient/lib/lifecycle"
	"github.com/bureau-foundation/buildclient/lib/outputlock"
	"github.com/bureau-foundation/buildclient/lib/rcfile"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/startup"
	"github.com/bureau-foundation/buildclient/lib/version"
	"github.com/bureau-foundation/buildclient/lib/wire"
	"github.com/bureau-foundation/buildclient/lib/workspace"
)

const (
	execServerCommand = "exec-server"
	shutdownCommand   = "shutdown"
)

// invocation is one resolved client run: everything the three modes
// need once options are parsed, the lock is held, and the install base
// is in place.
type invocation struct {
	env     *environment
	product startup.Product
	logger  *slog.Logger

	commandLine *startup.CommandLine
	options     *startup.Options

	// serverDirectory is where the server runs: the workspace, or the
	// working directory in batch mode outside a workspace.
	serverDirectory string

	rcFiles []*rcfile.File
	rcFlags []rcfile.StartupFlag

	spec        launcher.Spec
	coordinator *lifecycle.Coordinator
	lock        *outputlock.Lock

	start       time.Time
	lockWait    time.Duration
	extractTime time.Duration
}

// run executes one client invocation and returns the process exit
// code. A non-nil error is fatal and carries its own exit code.
func run(ctx context.Context, env *environment) (exitcode.Code, error) {
	product := startup.Bazel{}
	start := env.clock.Now()

	if len(env.args) == 2 && env.args[1] == "--version" {
		fmt.Fprintln(env.stdout, version.Banner(product.Name()))
		return exitcode.Success, nil
	}

	level := new(slog.LevelVar)
	logger := newLogger(env.stderr, level)

	inv, err := prepare(ctx, env, product, logger, level)
	if err != nil {
		return 0, err
	}
	inv.start = start
	defer inv.lock.Release()

	command := inv.commandLine.Command
	serverMode := command == execServerCommand

	connected := inv.coordinator.Connect(ctx)
	if !inv.options.Batch && !serverMode && command == shutdownCommand && !connected {
		return exitcode.Success, nil
	}
	if err := inv.coordinator.EnsureCorrectRunningVersion(ctx); err != nil {
		return 0, err
	}
	killed, err := inv.coordinator.KillIfDifferentStartupOptions(ctx)
	if err != nil {
		return 0, err
	}
	if killed && command == shutdownCommand {
		return exitcode.Success, nil
	}

	switch {
	case serverMode:
		return inv.runServerMode()
	case inv.options.Batch:
		return inv.runBatchMode(ctx)
	default:
		return inv.runClientServerMode(ctx)
	}
}

// prepare resolves the workspace and startup options, takes the output
// base lock, and makes sure the install base is extracted.
func prepare(ctx context.Context, env *environment, product startup.Product, logger *slog.Logger, level *slog.LevelVar) (*invocation, error) {
	cwd := env.workingDirectory
	workspaceRoot, inWorkspace := workspace.Find(cwd)
	if !inWorkspace {
		fmt.Fprintf(env.stderr,
			"WARNING: Invoking %s in batch mode since it is not invoked from within a workspace (below a directory having a WORKSPACE file).\n",
			product.Name())
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, exitcode.Wrap(exitcode.LocalEnvironmentalError, err)
	}
	defaults := startup.ApplyConfig(startup.Defaults(product), cfg)

	commandLine, err := startup.SplitCommandLine(product, env.args)
	if err != nil {
		return nil, err
	}
	selection, err := startup.RcSelection(product, defaults, commandLine.StartupArgs, cwd, workspaceRoot, env.home)
	if err != nil {
		return nil, err
	}
	rcFiles, err := rcfile.Load(selection, logger)
	if err != nil {
		return nil, err
	}
	rcFlags := rcfile.StartupFlags(rcFiles)
	options, err := startup.Parse(product, defaults, rcFlags, commandLine.StartupArgs, cwd)
	if err != nil {
		return nil, err
	}
	if options.ClientDebug {
		level.Set(slog.LevelDebug)
	}
	if !inWorkspace {
		options.Batch = true
	}

	serverMode := commandLine.Command == execServerCommand
	if serverMode && options.Batch {
		return nil, exitcode.Errorf(exitcode.BadArgv, "exec-server command is not compatible with --batch")
	}

	archivePath := cfg.InstallArchive
	if archivePath == "" {
		archivePath = installbase.DefaultArchivePath(env.binaryPath, product.InstallArchiveName())
	}
	archive, err := installbase.Open(archivePath)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.LocalEnvironmentalError, err)
	}

	serverDirectory := workspaceRoot
	if serverDirectory == "" {
		serverDirectory = cwd
	}
	if err := options.Resolve(serverDirectory, archive.Digest, serverMode); err != nil {
		return nil, err
	}
	for _, warning := range startup.Warnings(product, options) {
		fmt.Fprintf(env.stderr, "WARNING: %s\n", warning)
	}
	logger.Debug("startup options resolved",
		"version", version.Info(),
		"output_base", options.OutputBase,
		"install_base", options.InstallBase,
		"workspace", workspaceRoot,
		"batch", options.Batch,
	)

	lock, lockWait, err := outputlock.Acquire(ctx, options.OutputBase, outputlock.Options{
		Block:  options.BlockForLock,
		Clock:  env.clock,
		Notify: env.stderr,
	})
	if err != nil {
		return nil, err
	}

	extractTime, err := installbase.Ensure(archive, options.InstallBase, installbase.Options{
		Product: product.Name(),
		Clock:   env.clock,
		Logger:  logger,
	})
	if err != nil {
		lock.Release()
		return nil, err
	}

	javabase, javabaseKind := startup.ResolveJavabase(options, env.getenv)
	argv := startup.ServerArgs(product, options, startup.ServerInputs{
		Workspace:       serverDirectory,
		InstallDigest:   archive.Digest,
		Javabase:        javabase,
		JavabaseKind:    javabaseKind,
		ArchiveContents: archive.Contents,
	})

	serverDir := serverdir.Path(options.OutputBase)
	logPath := filepath.Join(serverDir, serverdir.LogFile)
	if options.ServerJVMOut != "" {
		logPath = options.ServerJVMOut
	}
	spec := launcher.Spec{
		Product:            product.Name(),
		Executable:         startup.ServerExecutable(javabase),
		Argv:               argv,
		Environment:        launcher.ServerEnvironment(env.environ, env.stderr, launcher.LocaleAvailable),
		WorkingDirectory:   serverDirectory,
		ServerDirectory:    serverDir,
		LogPath:            logPath,
		AppendLog:          options.ServerJVMOut != "",
		BatchCPUScheduling: options.BatchCPUScheduling,
		IONiceLevel:        options.IONiceLevel,
	}

	coordinator := lifecycle.New(lifecycle.Config{
		Product:            product.Name(),
		OutputBase:         options.OutputBase,
		InstallBase:        options.InstallBase,
		WorkspaceDirectory: workspaceRoot,
		Server:             spec,
		ConnectTimeout:     options.ConnectTimeout(),
		StartupTimeout:     options.StartupTimeout(),
		BlockForLock:       options.BlockForLock,
		Processes:          env.processes,
		Launcher:           launcher.New(env.clock, env.stderr, logger),
		Clock:              env.clock,
		Exec:               env.exec,
		Stderr:             env.stderr,
		Logger:             logger,
	})

	return &invocation{
		env:             env,
		product:         product,
		logger:          logger,
		commandLine:     commandLine,
		options:         options,
		serverDirectory: serverDirectory,
		rcFiles:         rcFiles,
		rcFlags:         rcFlags,
		spec:            spec,
		coordinator:     coordinator,
		lock:            lock,
		lockWait:        lockWait,
		extractTime:     extractTime,
	}, nil
}

// commandInvocation assembles the request for the command: rc file
// options and client facts first, then the user's arguments.
func (inv *invocation) commandInvocation() *lifecycle.Invocation {
	client := rcfile.Client{
		IsTerminal:       inv.env.isTerminal,
		TerminalColumns:  inv.env.terminalColumns,
		Environment:      inv.env.environ,
		WorkingDirectory: inv.env.workingDirectory,
	}
	args := append(rcfile.CommandArgs(inv.rcFiles, client), inv.commandLine.CommandArgs...)

	var startupOptions []wire.StartupOption
	for _, flag := range inv.rcFlags {
		startupOptions = append(startupOptions, wire.StartupOption{Source: flag.Source, Option: []byte(flag.Value)})
	}
	for _, arg := range inv.commandLine.StartupArgs {
		startupOptions = append(startupOptions, wire.StartupOption{Source: startup.CommandLineSource, Option: []byte(arg)})
	}

	return &lifecycle.Invocation{
		Command:          inv.commandLine.Command,
		Args:             args,
		BlockForLock:     inv.options.BlockForLock,
		Preemptible:      inv.options.Preemptible,
		InvocationPolicy: inv.options.InvocationPolicy,
		StartupOptions:   startupOptions,
		BinaryPath:       inv.env.binaryPath,
		StartupTime:      inv.env.clock.Now().Sub(inv.start),
		CommandWaitTime:  inv.lockWait,
		ExtractDataTime:  inv.extractTime,
		Lock:             inv.lock,
		Stdout:           inv.env.stdout,
		Stderr:           inv.env.stderr,
	}
}
