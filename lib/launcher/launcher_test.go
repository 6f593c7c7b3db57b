// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/process"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shellSpec(outputBase, script string) Spec {
	serverDir := serverdir.Path(outputBase)
	return Spec{
		Product:         "Bazel",
		Executable:      "/bin/sh",
		Argv:            []string{"bazel(test)", "-c", script},
		Environment:     []string{"PATH=/usr/bin:/bin"},
		ServerDirectory: serverDir,
		LogPath:         filepath.Join(serverDir, serverdir.LogFile),
		IONiceLevel:     -1,
	}
}

// killOnCleanup makes sure a long-running test server does not outlive
// the test.
func killOnCleanup(t *testing.T, server *Server) {
	t.Cleanup(func() {
		syscall.Kill(server.PID(), syscall.SIGKILL)
		<-server.Exited()
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestLaunchRecordsCmdlineAndRedirectsOutput(t *testing.T) {
	outputBase := testutil.OutputBase(t)
	workspace := testutil.Workspace(t)

	spec := shellSpec(outputBase, `echo "cwd=$(pwd)"; echo "marker=$MARKER"; echo oops >&2`)
	spec.WorkingDirectory = workspace
	spec.Environment = append(spec.Environment, "MARKER=from-spec")

	launcher := New(clock.Real(), io.Discard, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, server.Exited(), 10*time.Second, "server exit")

	argv, ok := serverdir.ReadCmdline(spec.ServerDirectory)
	if !ok {
		t.Fatal("cmdline was not recorded")
	}
	if len(argv) != 3 || argv[0] != "bazel(test)" {
		t.Errorf("cmdline = %q", argv)
	}

	log := readFile(t, spec.LogPath)
	for _, want := range []string{"cwd=" + workspace, "marker=from-spec", "oops"} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}
	if os.Getenv("MARKER") != "" {
		t.Error("launch modified the client environment")
	}
}

func TestLaunchTruncatesOrAppendsLog(t *testing.T) {
	for _, appendLog := range []bool{false, true} {
		outputBase := testutil.OutputBase(t)
		spec := shellSpec(outputBase, "echo second")
		spec.AppendLog = appendLog
		testutil.WriteFile(t, spec.LogPath, "first\n")

		server, err := New(clock.Real(), io.Discard, discardLogger()).Launch(spec)
		if err != nil {
			t.Fatalf("Launch: %v", err)
		}
		testutil.RequireClosed(t, server.Exited(), 10*time.Second, "server exit")

		log := readFile(t, spec.LogPath)
		if got := strings.Contains(log, "first"); got != appendLog {
			t.Errorf("append=%v: previous log kept = %v (log %q)", appendLog, got, log)
		}
		if !strings.Contains(log, "second") {
			t.Errorf("append=%v: log %q missing new output", appendLog, log)
		}
	}
}

func TestLaunchCreatesServerDirectory(t *testing.T) {
	outputBase := t.TempDir()
	spec := shellSpec(outputBase, "exit 0")

	server, err := New(clock.Real(), io.Discard, discardLogger()).Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, server.Exited(), 10*time.Second, "server exit")

	info, err := os.Stat(spec.ServerDirectory)
	if err != nil {
		t.Fatalf("server directory: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("server directory mode = %v, want 0700", info.Mode().Perm())
	}
}

func TestLaunchMissingExecutable(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "")
	spec.Executable = filepath.Join(t.TempDir(), "no-such-java")

	if _, err := New(clock.Real(), io.Discard, discardLogger()).Launch(spec); err == nil {
		t.Fatal("Launch of a missing executable succeeded")
	}
}

func TestAwaitReadySucceedsWhenProbeDoes(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "exec sleep 60")
	launcher := New(clock.Real(), io.Discard, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	killOnCleanup(t, server)

	var calls atomic.Int32
	ready := func(context.Context) bool { return calls.Add(1) >= 3 }
	if err := launcher.AwaitReady(context.Background(), server, 30*time.Second, ready); err != nil {
		t.Fatalf("AwaitReady: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("ready called %d times, want 3", calls.Load())
	}
}

func TestAwaitReadyReportsCrash(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "echo boom-from-server >&2; exit 3")
	var stderr bytes.Buffer
	launcher := New(clock.Real(), &stderr, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	err = launcher.AwaitReady(context.Background(), server, 30*time.Second,
		func(context.Context) bool { return false })
	if code := exitcode.FromError(err); code != exitcode.InternalError {
		t.Fatalf("AwaitReady error = %v (code %v), want InternalError", err, code)
	}
	output := stderr.String()
	if !strings.Contains(output, "Server crashed during startup. Now printing "+spec.LogPath) {
		t.Errorf("stderr missing crash notice:\n%s", output)
	}
	if !strings.Contains(output, "boom-from-server") {
		t.Errorf("stderr missing server log contents:\n%s", output)
	}
}

func TestAwaitReadyCrashWithAppendedLog(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "echo boom-from-server >&2; exit 3")
	spec.AppendLog = true
	var stderr bytes.Buffer
	launcher := New(clock.Real(), &stderr, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	err = launcher.AwaitReady(context.Background(), server, 30*time.Second,
		func(context.Context) bool { return false })
	if exitcode.FromError(err) != exitcode.InternalError {
		t.Fatalf("AwaitReady error = %v, want InternalError", err)
	}
	output := stderr.String()
	if !strings.Contains(output, "Server crashed during startup. See "+spec.LogPath) {
		t.Errorf("stderr missing crash notice:\n%s", output)
	}
	if strings.Contains(output, "boom-from-server") {
		t.Errorf("appended log was echoed:\n%s", output)
	}
}

func TestAwaitReadyTimesOutWithProgress(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "exec sleep 60")
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	var stderr bytes.Buffer
	launcher := New(fake, &stderr, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	killOnCleanup(t, server)

	done := make(chan struct{})
	var awaitErr error
	go func() {
		awaitErr = launcher.AwaitReady(context.Background(), server, 25*time.Second,
			func(context.Context) bool { return false })
		close(done)
	}()
	fake.AdvanceUntil(done, process.PollInterval)

	if exitcode.FromError(awaitErr) != exitcode.InternalError {
		t.Fatalf("AwaitReady error = %v, want InternalError", awaitErr)
	}
	if !strings.Contains(awaitErr.Error(), "after 25 seconds") {
		t.Errorf("error %q does not name the timeout", awaitErr)
	}

	output := stderr.String()
	if strings.Count(output, "Starting local Bazel server") != 1 {
		t.Errorf("want exactly one startup notice:\n%s", output)
	}
	for _, want := range []string{"after 10 seconds", "after 20 seconds"} {
		if !strings.Contains(output, want) {
			t.Errorf("stderr missing %q:\n%s", want, output)
		}
	}
	if strings.Count(output, "still trying") != 2 {
		t.Errorf("want two progress messages:\n%s", output)
	}
}

func TestAwaitReadyHonorsContext(t *testing.T) {
	spec := shellSpec(testutil.OutputBase(t), "exec sleep 60")
	launcher := New(clock.Real(), io.Discard, discardLogger())
	server, err := launcher.Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	killOnCleanup(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = launcher.AwaitReady(ctx, server, 30*time.Second, func(context.Context) bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AwaitReady error = %v, want context.Canceled", err)
	}
}
