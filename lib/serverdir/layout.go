// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serverdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DirectoryName      = "server"
	CommandPortFile    = "command_port"
	RequestCookieFile  = "request_cookie"
	ResponseCookieFile = "response_cookie"
	PIDFile            = "server.pid.txt"
	CmdlineFile        = "cmdline"
	LogFile            = "jvm.out"

	InstallLink    = "install"
	AbruptExitFile = "exit_code_to_use_on_abrupt_exit"
)

// Path returns <outputBase>/server.
func Path(outputBase string) string {
	return filepath.Join(outputBase, DirectoryName)
}

// Ensure creates the server directory with owner-only permissions.
// An existing directory is left as is.
func Ensure(serverDir string) error {
	if err := os.MkdirAll(serverDir, 0700); err != nil {
		return fmt.Errorf("creating server directory %s: %w", serverDir, err)
	}
	return nil
}
