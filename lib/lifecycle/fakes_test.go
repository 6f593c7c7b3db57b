// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/launcher"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/testutil"
	"github.com/bureau-foundation/buildclient/lib/wire"
)

// fakeProcesses is an in-memory process table.
type fakeProcesses struct {
	mu         sync.Mutex
	alive      map[int]bool
	unkillable map[int]bool
	owners     map[int]string
	cwds       map[int]string
	kills      []int
}

func newFakeProcesses() *fakeProcesses {
	return &fakeProcesses{
		alive:      make(map[int]bool),
		unkillable: make(map[int]bool),
		owners:     make(map[int]string),
		cwds:       make(map[int]string),
	}
}

func (f *fakeProcesses) IsAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeProcesses) OwnedBy(pid, uid int) bool { return true }

func (f *fakeProcesses) Kill(pid int, outputBase string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return false
	}
	if owner, ok := f.owners[pid]; ok && owner != outputBase {
		return false
	}
	f.kills = append(f.kills, pid)
	if !f.unkillable[pid] {
		f.alive[pid] = false
	}
	return true
}

func (f *fakeProcesses) OwningOutputBase(pid int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[pid]
	return owner, ok
}

func (f *fakeProcesses) WorkingDirectory(pid int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cwd, ok := f.cwds[pid]
	return cwd, ok
}

func (f *fakeProcesses) setAlive(pid int, alive bool) {
	f.mu.Lock()
	f.alive[pid] = alive
	f.mu.Unlock()
}

func (f *fakeProcesses) killCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.kills)
}

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

// runScript produces the response stream for one run request.
type runScript func(request *wire.RunRequest, send func(*wire.RunResponse) error) error

// fakeServer is an in-process server published in an output base.
type fakeServer struct {
	requestCookie  string
	responseCookie string
	pid            int

	mu sync.Mutex

	// pingCookie, when set, is echoed instead of responseCookie.
	pingCookie string

	script   runScript
	runs     []*wire.RunRequest
	cancels  []string
	canceled chan string
}

func (s *fakeServer) Ping(ctx context.Context, request *wire.PingRequest) (*wire.PingResponse, error) {
	if request.Cookie != s.requestCookie {
		return nil, errors.New("bad request cookie")
	}
	s.mu.Lock()
	cookie := s.responseCookie
	if s.pingCookie != "" {
		cookie = s.pingCookie
	}
	s.mu.Unlock()
	return &wire.PingResponse{Cookie: cookie}, nil
}

func (s *fakeServer) Run(ctx context.Context, request *wire.RunRequest, send func(*wire.RunResponse) error) error {
	if request.Cookie != s.requestCookie {
		return errors.New("bad request cookie")
	}
	s.mu.Lock()
	s.runs = append(s.runs, request)
	script := s.script
	s.mu.Unlock()
	return script(request, send)
}

func (s *fakeServer) Cancel(ctx context.Context, request *wire.CancelRequest) (*wire.CancelResponse, error) {
	s.mu.Lock()
	s.cancels = append(s.cancels, request.CommandID)
	s.mu.Unlock()
	select {
	case s.canceled <- request.CommandID:
	default:
	}
	return &wire.CancelResponse{Cookie: s.responseCookie}, nil
}

func (s *fakeServer) setScript(script runScript) {
	s.mu.Lock()
	s.script = script
	s.mu.Unlock()
}

func (s *fakeServer) cancelIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

func (s *fakeServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var commands []string
	for _, run := range s.runs {
		if len(run.Args) > 0 {
			commands = append(commands, string(run.Args[0]))
		}
	}
	return commands
}

// finishWith returns a script that streams stdout and then finishes
// with code.
func finishWith(stdout string, code int, cookie string) runScript {
	return func(request *wire.RunRequest, send func(*wire.RunResponse) error) error {
		if stdout != "" {
			if err := send(&wire.RunResponse{Cookie: cookie, StandardOutput: []byte(stdout)}); err != nil {
				return err
			}
		}
		return send(&wire.RunResponse{Cookie: cookie, Finished: true, ExitCode: code})
	}
}

// fixture is a coordinator wired to fakes.
type fixture struct {
	outputBase  string
	installBase string
	processes   *fakeProcesses
	clock       *clock.FakeClock
	stderr      *lockedBuffer
	coordinator *Coordinator
}

var serverArgv = []string{
	"bazel(ws)",
	"-jar", "/install/A-server.jar",
	"--max_idle_secs=10800",
	"--output_base=/ob",
	"--client_debug=false",
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		outputBase:  testutil.OutputBase(t),
		installBase: t.TempDir(),
		processes:   newFakeProcesses(),
		clock:       clock.Fake(time.Unix(1_700_000_000, 0)),
		stderr:      &lockedBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	serverDir := serverdir.Path(f.outputBase)
	f.coordinator = New(Config{
		Product:     "Bazel",
		OutputBase:  f.outputBase,
		InstallBase: f.installBase,
		Server: launcher.Spec{
			Product:         "Bazel",
			Executable:      "/nonexistent/java",
			Argv:            serverArgv,
			ServerDirectory: serverDir,
			LogPath:         filepath.Join(serverDir, serverdir.LogFile),
			IONiceLevel:     -1,
		},
		Processes: f.processes,
		Launcher:  launcher.New(f.clock, f.stderr, logger),
		Clock:     f.clock,
		Exec: func(string, []string, []string) error {
			return errors.New("exec not expected")
		},
		Stderr: f.stderr,
		Logger: logger,
	})
	return f
}

// startServer publishes an in-process server with a fake PID. By
// default it answers "shutdown" by dying and every other command with
// exit code 0.
func (f *fixture) startServer(t *testing.T, pid int) *fakeServer {
	t.Helper()
	server := &fakeServer{
		requestCookie:  serverdir.NewCookie(),
		responseCookie: serverdir.NewCookie(),
		pid:            pid,
		canceled:       make(chan string, 8),
	}
	server.script = func(request *wire.RunRequest, send func(*wire.RunResponse) error) error {
		if string(request.Args[0]) == "shutdown" {
			f.processes.setAlive(pid, false)
		}
		return finishWith("", 0, server.responseCookie)(request, send)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		wire.NewServer(server, slog.New(slog.NewTextHandler(io.Discard, nil))).Serve(ctx, listener)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	f.processes.setAlive(pid, true)
	err = serverdir.WriteConnectionFiles(serverdir.Path(f.outputBase), serverdir.ConnectionInfo{
		Address:        listener.Addr().String(),
		RequestCookie:  server.requestCookie,
		ResponseCookie: server.responseCookie,
		PID:            pid,
	})
	if err != nil {
		t.Fatalf("WriteConnectionFiles: %v", err)
	}
	return server
}

// connect starts a fake server and connects the fixture's coordinator
// to it.
func (f *fixture) connect(t *testing.T, pid int) *fakeServer {
	t.Helper()
	server := f.startServer(t, pid)
	if !f.coordinator.Connect(context.Background()) {
		t.Fatal("Connect failed against a live fake server")
	}
	return server
}
