// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "strconv"

// RestartReason records why the client had to start a new server.
type RestartReason int

const (
	NoRestart RestartReason = iota
	NoDaemon
	NewVersion
	NewOptions
	PidFileButNoServer
	ServerVanished
	ServerUnresponsive
)

// String returns the name forwarded to the server in
// --restart_reason=.
func (r RestartReason) String() string {
	switch r {
	case NoRestart:
		return "no_restart"
	case NoDaemon:
		return "no_daemon"
	case NewVersion:
		return "new_version"
	case NewOptions:
		return "new_options"
	case PidFileButNoServer:
		return "pid_file_but_no_server"
	case ServerVanished:
		return "server_vanished"
	case ServerUnresponsive:
		return "server_unresponsive"
	default:
		return "restart_reason_" + strconv.Itoa(int(r))
	}
}
