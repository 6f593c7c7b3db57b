// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serverdir

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bureau-foundation/buildclient/lib/netutil"
)

// ConnectionInfo is what a client needs to talk to a running server.
type ConnectionInfo struct {
	// Address is the loopback host:port from command_port.
	Address string

	RequestCookie  string
	ResponseCookie string

	PID int
}

// Processes is the liveness and ownership view Locate needs.
// process.Table implements it.
type Processes interface {
	IsAlive(pid int) bool
	OwnedBy(pid, uid int) bool
}

// Locate reads the connection files of the server for outputBase.
// Reports false, never an error, when any file is missing or
// malformed, when the endpoint is not loopback, or when the PID is not
// a live process owned by the current user. That is the ordinary "no
// server running" answer.
func Locate(outputBase string, processes Processes) (*ConnectionInfo, bool) {
	serverDir := Path(outputBase)

	pid, ok := ReadServerPID(outputBase)
	if !ok {
		return nil, false
	}

	address, ok := readLine(filepath.Join(serverDir, CommandPortFile))
	if !ok || !isLoopbackEndpoint(address) {
		return nil, false
	}
	requestCookie, ok := readLine(filepath.Join(serverDir, RequestCookieFile))
	if !ok {
		return nil, false
	}
	responseCookie, ok := readLine(filepath.Join(serverDir, ResponseCookieFile))
	if !ok {
		return nil, false
	}

	if !processes.IsAlive(pid) || !processes.OwnedBy(pid, os.Getuid()) {
		return nil, false
	}

	return &ConnectionInfo{
		Address:        address,
		RequestCookie:  requestCookie,
		ResponseCookie: responseCookie,
		PID:            pid,
	}, true
}

// ReadServerPID returns the PID recorded in server.pid.txt, without
// checking whether it is alive.
func ReadServerPID(outputBase string) (int, bool) {
	text, ok := readLine(filepath.Join(Path(outputBase), PIDFile))
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// readLine returns the file content without its trailing line ending.
// An empty file reads as missing.
func readLine(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return "", false
	}
	return text, true
}

func isLoopbackEndpoint(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	if number, err := strconv.Atoi(port); err != nil || number <= 0 || number > 65535 {
		return false
	}
	return netutil.IsLoopback(host)
}
