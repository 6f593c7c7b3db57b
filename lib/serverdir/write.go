// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serverdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bureau-foundation/buildclient/lib/atomicfile"
)

// WriteCmdline records the argv a server was started with.
func WriteCmdline(serverDir string, argv []string) error {
	path := filepath.Join(serverDir, CmdlineFile)
	if err := atomicfile.Write(path, []byte(strings.Join(argv, "\x00")), 0644); err != nil {
		return fmt.Errorf("writing server cmdline: %w", err)
	}
	return nil
}

// ReadCmdline returns the argv recorded by WriteCmdline. Reports false
// when no cmdline was recorded.
func ReadCmdline(serverDir string) ([]string, bool) {
	data, err := os.ReadFile(filepath.Join(serverDir, CmdlineFile))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return strings.Split(string(data), "\x00"), true
}

// RemoveCommandPort deletes the endpoint file so that a stale endpoint
// is never mistaken for the server about to be started.
func RemoveCommandPort(serverDir string) error {
	return atomicfile.Remove(filepath.Join(serverDir, CommandPortFile))
}

// WritePID records pid in server.pid.txt.
func WritePID(serverDir string, pid int) error {
	path := filepath.Join(serverDir, PIDFile)
	if err := atomicfile.Write(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing server pid: %w", err)
	}
	return nil
}

// WriteConnectionFiles publishes a server's connection information:
// the PID, both cookies, and the endpoint last. This is the server's
// side of Locate.
func WriteConnectionFiles(serverDir string, info ConnectionInfo) error {
	if err := WritePID(serverDir, info.PID); err != nil {
		return err
	}
	files := []struct {
		name    string
		content string
	}{
		{RequestCookieFile, info.RequestCookie},
		{ResponseCookieFile, info.ResponseCookie},
		{CommandPortFile, info.Address},
	}
	for _, file := range files {
		if err := atomicfile.Write(filepath.Join(serverDir, file.name), []byte(file.content), 0600); err != nil {
			return fmt.Errorf("publishing %s: %w", file.name, err)
		}
	}
	return nil
}

// RemoveConnectionFiles deletes the endpoint, cookies, and PID, the
// way a server cleans up on orderly shutdown.
func RemoveConnectionFiles(serverDir string) error {
	for _, name := range []string{CommandPortFile, RequestCookieFile, ResponseCookieFile, PIDFile} {
		if err := atomicfile.Remove(filepath.Join(serverDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// NewCookie returns a random 128-bit cookie in hex.
func NewCookie() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
