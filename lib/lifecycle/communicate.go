// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/buildclient/lib/atomicfile"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/netutil"
	"github.com/bureau-foundation/buildclient/lib/outputlock"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/wire"
)

// Invocation is one command to run on the connected server.
type Invocation struct {
	// Command is the command name ("build"). May be empty.
	Command string

	// Args are the user's arguments after the command name.
	Args []string

	BlockForLock     bool
	Preemptible      bool
	InvocationPolicy string
	StartupOptions   []wire.StartupOption

	// BinaryPath is the client executable, reported to the server.
	BinaryPath string

	// Timing reported to the server.
	StartupTime     time.Duration
	CommandWaitTime time.Duration
	ExtractDataTime time.Duration

	// Lock is released once the request has been sent.
	Lock *outputlock.Lock

	Stdout io.Writer
	Stderr io.Writer
}

// CommandArgs returns the argument vector sent to the server: the
// command, the client's timing and restart flags, then the user's
// arguments.
func CommandArgs(invocation *Invocation, reason RestartReason) []string {
	var args []string
	if invocation.Command != "" {
		args = append(args, invocation.Command)
	}
	args = append(args, fmt.Sprintf("--startup_time=%d", invocation.StartupTime.Milliseconds()))
	if invocation.CommandWaitTime > 0 {
		args = append(args, fmt.Sprintf("--command_wait_time=%d", invocation.CommandWaitTime.Milliseconds()))
	}
	if invocation.ExtractDataTime > 0 {
		args = append(args, fmt.Sprintf("--extract_data_time=%d", invocation.ExtractDataTime.Milliseconds()))
	}
	if reason != NoRestart {
		args = append(args, "--restart_reason="+reason.String())
	}
	args = append(args, "--binary_path="+invocation.BinaryPath)
	return append(args, invocation.Args...)
}

// Communicate runs invocation on the connected server and returns the
// exit code the client should exit with. A non-nil error carries its
// own exit code (see exitcode.FromError) and means the client failed
// before the server could report one.
//
// When the server asks the client to exec another program, Communicate
// does not return on success.
func (c *Coordinator) Communicate(ctx context.Context, invocation *Invocation) (exitcode.Code, error) {
	defer invocation.Lock.Release()
	if !c.Connected() {
		return exitcode.InternalError, exitcode.Errorf(exitcode.InternalError,
			"no connected %s server to send the command to", c.config.Product)
	}
	client := c.client
	cookie := c.connection.RequestCookie

	args := CommandArgs(invocation, c.restartReason)
	request := &wire.RunRequest{
		Cookie:            cookie,
		BlockForLock:      invocation.BlockForLock,
		Preemptible:       invocation.Preemptible,
		ClientDescription: fmt.Sprintf("pid=%d", os.Getpid()),
		Args:              make([][]byte, len(args)),
		InvocationPolicy:  invocation.InvocationPolicy,
		StartupOptions:    invocation.StartupOptions,
	}
	for i, argument := range args {
		request.Args[i] = []byte(argument)
	}

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		c.listenForCancel(ctx, client, cookie)
	}()
	joinListener := func() {
		c.actions <- action{kind: actionJoin}
		<-listenerDone
	}

	c.config.Logger.Debug("sending command", "args", args, "pid", c.ServerPID())
	stream, runErr := client.Run(ctx, request)
	invocation.Lock.Release()

	var final *wire.RunResponse
	var streamErr error
	pipeBroken := false
	cancelRequested := false
	commandIDSent := false
	warnedAfterFinish := false

	if runErr != nil {
		streamErr = runErr
	} else {
		for {
			response, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				streamErr = err
				break
			}
			if response.Cookie != c.connection.ResponseCookie {
				stream.Close()
				joinListener()
				return exitcode.InternalError, exitcode.Errorf(exitcode.InternalError,
					"server response cookie invalid, exiting")
			}
			if final != nil {
				if !warnedAfterFinish {
					c.config.Logger.Warn("server sent responses after the final one", "pid", c.ServerPID())
					warnedAfterFinish = true
				}
				continue
			}

			if err := forward(invocation.Stdout, response.StandardOutput); err != nil {
				pipeBroken = pipeBroken || netutil.IsBrokenPipe(err)
				if !cancelRequested {
					cancelRequested = true
					c.Cancel()
				}
			}
			if err := forward(invocation.Stderr, response.StandardError); err != nil {
				pipeBroken = pipeBroken || netutil.IsBrokenPipe(err)
				if !cancelRequested {
					cancelRequested = true
					c.Cancel()
				}
			}

			if response.CommandID != "" && !commandIDSent {
				commandIDSent = true
				c.actions <- action{kind: actionCommandIDReceived, commandID: response.CommandID}
			}
			if response.Finished {
				final = response
			}
		}
		stream.Close()
	}
	joinListener()

	if final == nil {
		return c.abruptExit(streamErr), nil
	}

	if final.FailureDetail != nil {
		c.config.Logger.Info("command failed",
			"message", final.FailureDetail.Message,
			"code", final.FailureDetail.Code,
		)
	}
	if final.TerminationExpected {
		c.awaitTermination(ctx)
	}
	if pipeBroken {
		return exitcode.LocalEnvironmentalError, nil
	}
	if final.ExecRequest != nil {
		if err := c.execute(final.ExecRequest, invocation); err != nil {
			return exitcode.FromError(err), err
		}
	}
	return exitcode.Code(final.ExitCode), nil
}

// forward writes data to w when there is any.
func forward(w io.Writer, data []byte) error {
	if len(data) == 0 || w == nil {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// consumeFile reads and removes the abrupt exit code file.
var consumeFile = atomicfile.Consume

// abruptExit recovers an exit code when the server went away without a
// final response. A server that knows it is about to die records the
// code it wants the client to use; without one the answer is
// InternalError.
func (c *Coordinator) abruptExit(cause error) exitcode.Code {
	code := exitcode.InternalError
	path := filepath.Join(c.config.OutputBase, serverdir.AbruptExitFile)
	data, err := consumeFile(path)
	if err != nil && len(data) > 0 {
		c.config.Logger.Warn("abrupt exit code file not removed", "path", path, "error", err)
	}
	if len(data) > 0 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			code = exitcode.Code(parsed)
		} else {
			c.config.Logger.Warn("unparsable abrupt exit code", "path", path, "content", string(data))
		}
	}

	message := "stream ended without a final response"
	if cause != nil {
		message = cause.Error()
	}
	fmt.Fprintf(c.config.Stderr,
		"\nServer terminated abruptly (error code: %d, error message: '%s', log file: '%s')\n\n",
		int(code), message, c.config.Server.LogPath)
	c.disconnect()
	return code
}

// awaitTermination waits for a server that announced it is shutting
// down, killing it once if it lingers.
func (c *Coordinator) awaitTermination(ctx context.Context) {
	pid := c.ServerPID()
	c.disconnect()
	if c.waitForExit(ctx, pid, ShutdownGrace) {
		return
	}
	if err := c.forceKill(ctx, pid); err != nil {
		c.config.Logger.Warn("server did not terminate", "pid", pid, "error", err)
	}
}

type syncer interface {
	Sync() error
}

// execute replaces the client with the program the server asked for.
// With the real exec it only returns on failure.
func (c *Coordinator) execute(request *wire.ExecRequest, invocation *Invocation) error {
	if len(request.Argv) == 0 {
		return exitcode.Errorf(exitcode.InternalError, "server requested exec with an empty argument vector")
	}
	for _, variable := range request.EnvironmentVariable {
		if err := os.Setenv(string(variable.Name), string(variable.Value)); err != nil {
			return exitcode.Errorf(exitcode.InternalError,
				"setting %s for exec: %v", variable.Name, err)
		}
	}
	directory := string(request.WorkingDirectory)
	if directory != "" {
		if err := os.Chdir(directory); err != nil {
			return exitcode.Errorf(exitcode.InternalError,
				"changing to directory '%s' for exec: %v", directory, err)
		}
	}

	for _, w := range []io.Writer{invocation.Stdout, invocation.Stderr} {
		if s, ok := w.(syncer); ok {
			s.Sync()
		}
	}

	argv := make([]string, len(request.Argv))
	for i, argument := range request.Argv {
		argv[i] = string(argument)
	}
	c.config.Logger.Debug("executing server-requested program", "argv", argv, "directory", directory)
	if err := c.config.Exec(argv[0], argv, os.Environ()); err != nil {
		return exitcode.Errorf(exitcode.InternalError, "executing '%s': %v", argv[0], err)
	}
	return nil
}
