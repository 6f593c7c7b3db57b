// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/outputlock"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/testutil"
	"github.com/bureau-foundation/buildclient/lib/wire"
)

// residentPID is the fake PID of the server published for client/server
// mode tests.
const residentPID = 4242

// residentProcesses reports one live server running in workspace.
type residentProcesses struct {
	workspace string

	mu    sync.Mutex
	kills []int
}

func (p *residentProcesses) IsAlive(pid int) bool      { return pid == residentPID }
func (p *residentProcesses) OwnedBy(pid, uid int) bool { return true }

func (p *residentProcesses) Kill(pid int, outputBase string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills = append(p.kills, pid)
	return true
}

func (p *residentProcesses) OwningOutputBase(pid int) (string, bool) { return "", false }

func (p *residentProcesses) WorkingDirectory(pid int) (string, bool) {
	return p.workspace, pid == residentPID
}

func (p *residentProcesses) killed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.kills)
}

// residentServer answers every command with its name on stdout and exit
// code 3. While running a command it checks whether the client still
// holds the output base lock.
type residentServer struct {
	info       serverdir.ConnectionInfo
	outputBase string

	mu           sync.Mutex
	requests     [][]string
	lockedDuring []bool
}

func (s *residentServer) Ping(ctx context.Context, request *wire.PingRequest) (*wire.PingResponse, error) {
	if request.Cookie != s.info.RequestCookie {
		return nil, errors.New("bad cookie")
	}
	return &wire.PingResponse{Cookie: s.info.ResponseCookie}, nil
}

func (s *residentServer) Run(ctx context.Context, request *wire.RunRequest, send func(*wire.RunResponse) error) error {
	if request.Cookie != s.info.RequestCookie {
		return errors.New("bad cookie")
	}
	args := make([]string, len(request.Args))
	for i, arg := range request.Args {
		args[i] = string(arg)
	}
	locked := s.clientHoldsLock(ctx)

	s.mu.Lock()
	s.requests = append(s.requests, args)
	s.lockedDuring = append(s.lockedDuring, locked)
	s.mu.Unlock()

	if err := send(&wire.RunResponse{Cookie: s.info.ResponseCookie, StandardOutput: []byte("ran " + args[0] + "\n")}); err != nil {
		return err
	}
	return send(&wire.RunResponse{Cookie: s.info.ResponseCookie, Finished: true, ExitCode: 3})
}

func (s *residentServer) Cancel(ctx context.Context, request *wire.CancelRequest) (*wire.CancelResponse, error) {
	return &wire.CancelResponse{Cookie: s.info.ResponseCookie}, nil
}

// clientHoldsLock reports whether the output base lock stays busy for
// five seconds. The client drops it right after sending the request.
func (s *residentServer) clientHoldsLock(ctx context.Context) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		lock, _, err := outputlock.Acquire(ctx, s.outputBase, outputlock.Options{})
		if err == nil {
			lock.Release()
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func (s *residentServer) observed() ([][]string, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests), slices.Clone(s.lockedDuring)
}

// publishResidentServer serves a residentServer on loopback and writes
// its connection files into outputBase.
func publishResidentServer(t *testing.T, outputBase string) *residentServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server := &residentServer{
		outputBase: outputBase,
		info: serverdir.ConnectionInfo{
			Address:        listener.Addr().String(),
			RequestCookie:  serverdir.NewCookie(),
			ResponseCookie: serverdir.NewCookie(),
			PID:            residentPID,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		wire.NewServer(server, slog.New(slog.NewTextHandler(io.Discard, nil))).Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := serverdir.WriteConnectionFiles(serverdir.Path(outputBase), server.info); err != nil {
		t.Fatalf("WriteConnectionFiles: %v", err)
	}
	return server
}

func TestClientServerModeReusesRunningServer(t *testing.T) {
	ws := testutil.Workspace(t)
	outputBase := testutil.OutputBase(t)
	installBase := filepath.Join(resolvedTempDir(t), "ib")
	if err := os.Symlink(installBase, filepath.Join(outputBase, serverdir.InstallLink)); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	server := publishResidentServer(t, outputBase)
	processes := &residentProcesses{workspace: ws}

	h := newHarness(t, ws, "--output_base="+outputBase, "--install_base="+installBase, "build", "//foo:bar")
	h.env.processes = processes

	for round := 1; round <= 2; round++ {
		h.stdout.Reset()
		code, err := h.run(t)
		if err != nil {
			t.Fatalf("run %d: %v (stderr: %s)", round, err, h.stderr)
		}
		if code != 3 {
			t.Errorf("run %d: exit code = %v, want the server's 3", round, code)
		}
		if got := h.stdout.String(); got != "ran build\n" {
			t.Errorf("run %d: stdout = %q, want the server's output", round, got)
		}
	}

	if len(h.execs) != 0 {
		t.Errorf("client/server mode exec'd %d times", len(h.execs))
	}
	if kills := processes.killed(); len(kills) != 0 {
		t.Errorf("running server was killed: %v", kills)
	}
	if strings.Contains(h.stderr.String(), "Killed non-responsive server") {
		t.Errorf("stderr = %q", h.stderr)
	}
	if _, err := os.Stat(filepath.Join(installBase, "A-server.jar")); err != nil {
		t.Errorf("install base not extracted: %v", err)
	}

	requests, lockedDuring := server.observed()
	if len(requests) != 2 {
		t.Fatalf("server received %d commands, want 2", len(requests))
	}
	for i, args := range requests {
		if args[0] != "build" || args[len(args)-1] != "//foo:bar" {
			t.Errorf("request %d args = %q, want build ... //foo:bar", i+1, args)
		}
		if slices.ContainsFunc(args, func(arg string) bool { return strings.HasPrefix(arg, "--restart_reason=") }) {
			t.Errorf("request %d reports a restart for a reused server: %q", i+1, args)
		}
		if lockedDuring[i] {
			t.Errorf("request %d: output base lock still held while the server ran the command", i+1)
		}
	}

	// The client exits without holding the lock.
	lock, _, err := outputlock.Acquire(context.Background(), outputBase, outputlock.Options{})
	if err != nil {
		t.Fatalf("Acquire after run: %v (code %v)", err, exitcode.FromError(err))
	}
	lock.Release()
}
