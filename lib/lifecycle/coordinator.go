// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/launcher"
	"github.com/bureau-foundation/buildclient/lib/serverdir"
	"github.com/bureau-foundation/buildclient/lib/wire"
)

// Grace periods for server shutdown.
const (
	// ShutdownGrace is how long a server has to exit after an orderly
	// shutdown request or after announcing termination.
	ShutdownGrace = 60 * time.Second

	// KillGrace is how long a server has to disappear after SIGKILL.
	KillGrace = 10 * time.Second

	// CancelTimeout bounds one cancel call.
	CancelTimeout = 10 * time.Second
)

// Default timeouts applied when Config leaves them zero.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultStartupTimeout = 120 * time.Second
)

// Processes is the view of the host process table the coordinator
// needs. process.Table implements it.
type Processes interface {
	IsAlive(pid int) bool
	OwnedBy(pid, uid int) bool
	Kill(pid int, outputBase string) bool
	OwningOutputBase(pid int) (string, bool)
	WorkingDirectory(pid int) (string, bool)
}

// ExecFunc replaces the current process image. syscall.Exec in
// production.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Config holds everything a Coordinator needs. It is not modified
// after New.
type Config struct {
	Product     string
	OutputBase  string
	InstallBase string

	// WorkspaceDirectory is the workspace the server must run in.
	// Empty when the client runs outside a workspace.
	WorkspaceDirectory string

	// Server describes how to launch a server. Server.Argv is also the
	// reference command line for KillIfDifferentStartupOptions.
	Server launcher.Spec

	ConnectTimeout time.Duration
	StartupTimeout time.Duration

	// BlockForLock is passed on the shutdown command issued by
	// KillRunningServer.
	BlockForLock bool

	Processes Processes
	Launcher  *launcher.Launcher
	Clock     clock.Clock
	Exec      ExecFunc

	// Stderr receives user-facing notices.
	Stderr io.Writer
	Logger *slog.Logger
}

// State is where a Coordinator is in reaching a server.
type State int

const (
	// Disconnected: no authenticated server.
	Disconnected State = iota

	// Connecting: a server was launched and is being polled.
	Connecting

	// Connected: a server answered the ping with the right cookie.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Coordinator owns the client's relationship with the server for one
// output base. All methods except Cancel, ServerPID, and
// KillServerNow must be called from a single goroutine.
type Coordinator struct {
	config    Config
	serverDir string

	state      State
	connection serverdir.ConnectionInfo
	client     *wire.Client

	// pidMu guards serverPID, which the signal handler reads.
	pidMu     sync.Mutex
	serverPID int

	restartReason RestartReason

	actions chan action
}

// New returns a Disconnected coordinator.
func New(config Config) *Coordinator {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = DefaultStartupTimeout
	}
	if config.Exec == nil {
		config.Exec = syscall.Exec
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	return &Coordinator{
		config:    config,
		serverDir: serverdir.Path(config.OutputBase),
		actions:   make(chan action, actionBuffer),
	}
}

// State reports the coordinator's connection state.
func (c *Coordinator) State() State { return c.state }

// Connected reports whether a server has been authenticated.
func (c *Coordinator) Connected() bool { return c.state == Connected }

// ServerPID returns the PID of the connected server, or 0.
func (c *Coordinator) ServerPID() int {
	c.pidMu.Lock()
	defer c.pidMu.Unlock()
	return c.serverPID
}

// RestartReason returns the first reason recorded for starting a new
// server, or NoRestart.
func (c *Coordinator) RestartReason() RestartReason { return c.restartReason }

func (c *Coordinator) setRestartReason(reason RestartReason) {
	if c.restartReason == NoRestart {
		c.restartReason = reason
	}
}

func (c *Coordinator) setServerPID(pid int) {
	c.pidMu.Lock()
	c.serverPID = pid
	c.pidMu.Unlock()
}

// Connect tries to authenticate a published server. The ping must echo
// the response cookie within the connect timeout.
func (c *Coordinator) Connect(ctx context.Context) bool {
	info, ok := serverdir.Locate(c.config.OutputBase, c.config.Processes)
	if !ok {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()
	client := wire.NewClient(info.Address)
	cookie, err := client.Ping(ctx, info.RequestCookie)
	if err != nil {
		c.config.Logger.Debug("ping failed", "address", info.Address, "pid", info.PID, "error", err)
		return false
	}
	if cookie != info.ResponseCookie {
		c.config.Logger.Debug("ping returned wrong response cookie", "address", info.Address, "pid", info.PID)
		return false
	}

	c.state = Connected
	c.connection = *info
	c.client = client
	c.setServerPID(info.PID)
	c.config.Logger.Debug("connected to server", "address", info.Address, "pid", info.PID)
	return true
}

// disconnect forgets the server without touching it.
func (c *Coordinator) disconnect() {
	c.state = Disconnected
	c.connection = serverdir.ConnectionInfo{}
	c.client = nil
}

// StartServerAndConnect clears any stale server for this output base,
// launches a new one, and waits until it accepts a ping.
func (c *Coordinator) StartServerAndConnect(ctx context.Context) error {
	c.state = Connecting
	defer func() {
		if c.state == Connecting {
			c.state = Disconnected
		}
	}()

	if err := serverdir.RemoveCommandPort(c.serverDir); err != nil {
		c.config.Logger.Debug("removing stale command_port", "error", err)
	}
	if err := serverdir.Ensure(c.serverDir); err != nil {
		return err
	}

	if pid, ok := serverdir.ReadServerPID(c.config.OutputBase); ok {
		c.clearStaleServer(ctx, pid)
	}
	c.setRestartReason(NoDaemon)

	server, err := c.config.Launcher.Launch(c.config.Server)
	if err != nil {
		return fmt.Errorf("starting %s server: %w", c.config.Product, err)
	}
	return c.config.Launcher.AwaitReady(ctx, server, c.config.StartupTimeout, c.Connect)
}

// clearStaleServer handles a PID file left behind by a server that did
// not answer Connect. Callers try Connect first; a live process here
// refused or ignored the ping.
func (c *Coordinator) clearStaleServer(ctx context.Context, pid int) {
	if !c.verifyServerProcess(pid) {
		c.setRestartReason(PidFileButNoServer)
		return
	}
	if c.config.Processes.Kill(pid, c.config.OutputBase) {
		fmt.Fprintf(c.config.Stderr, "Killed non-responsive server process (pid=%d)\n", pid)
		c.waitForExit(ctx, pid, KillGrace)
		c.setRestartReason(ServerUnresponsive)
		return
	}
	c.setRestartReason(ServerVanished)
}

// verifyServerProcess reports whether pid is alive and, as far as can
// be told, serves this output base.
func (c *Coordinator) verifyServerProcess(pid int) bool {
	if !c.config.Processes.IsAlive(pid) {
		return false
	}
	owner, known := c.config.Processes.OwningOutputBase(pid)
	return !known || filepath.Clean(owner) == filepath.Clean(c.config.OutputBase)
}

// ConnectOrStart ensures a connected server running in the workspace.
// A published server that answers the ping is reused; only when none
// does is a new one launched. A server whose working directory has
// moved or been deleted is killed and replaced.
func (c *Coordinator) ConnectOrStart(ctx context.Context) error {
	workspace := c.config.WorkspaceDirectory
	if resolved, err := filepath.EvalSymlinks(workspace); err == nil {
		workspace = resolved
	}

	for {
		if !c.Connected() && !c.Connect(ctx) {
			if err := c.StartServerAndConnect(ctx); err != nil {
				return err
			}
		}

		cwd, known := c.config.Processes.WorkingDirectory(c.ServerPID())
		if !known || c.config.WorkspaceDirectory == "" {
			return nil
		}
		if cwd == workspace && !strings.HasSuffix(cwd, " (deleted)") {
			return nil
		}

		fmt.Fprintf(c.config.Stderr, "Server's cwd moved or deleted (%s).\n", cwd)
		c.config.Logger.Info("restarting server with stale working directory",
			"pid", c.ServerPID(),
			"server_cwd", cwd,
			"workspace", workspace,
		)
		if err := c.KillRunningServer(ctx); err != nil {
			return err
		}
	}
}
