// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rcfile

import (
	"fmt"
	"strconv"
)

// StartupCommand is the pseudo-command whose lines hold client
// startup flags.
const StartupCommand = "startup"

// StartupFlag is a startup option and the rc file it came from.
type StartupFlag struct {
	Source string
	Value  string
}

// StartupFlags returns the "startup" options of files, in file order.
func StartupFlags(files []*File) []StartupFlag {
	var flags []StartupFlag
	for _, file := range files {
		for _, option := range file.Options(StartupCommand) {
			flags = append(flags, StartupFlag{
				Source: file.SourceOf(option),
				Value:  option.Value,
			})
		}
	}
	return flags
}

// Client describes the client's terminal and environment, forwarded to
// the server with every command.
type Client struct {
	IsTerminal       bool
	TerminalColumns  int
	Environment      []string
	WorkingDirectory string
}

// CommandArgs returns the arguments that precede the user's own
// command arguments: terminal facts as overrides from the pseudo-source
// "client" (index 0), one --rc_source per distinct file read, one
// --default_override per non-startup rc option, the client environment,
// and the client's working directory.
func CommandArgs(files []*File, client Client) []string {
	isatty := "0"
	if client.IsTerminal {
		isatty = "1"
	}
	args := []string{
		"--rc_source=client",
		"--default_override=0:common=--isatty=" + isatty,
		"--default_override=0:common=--terminal_columns=" + strconv.Itoa(client.TerminalColumns),
	}

	indexes := make(map[string]int)
	for _, file := range files {
		for _, source := range file.SourcePaths() {
			if _, ok := indexes[source]; ok {
				continue
			}
			indexes[source] = len(indexes) + 1
			args = append(args, "--rc_source="+source)
		}
	}

	for _, file := range files {
		for _, command := range file.Commands() {
			if command == StartupCommand {
				continue
			}
			for _, option := range file.Options(command) {
				args = append(args, fmt.Sprintf("--default_override=%d:%s=%s",
					indexes[file.SourceOf(option)], command, option.Value))
			}
		}
	}

	for _, variable := range client.Environment {
		args = append(args, "--client_env="+variable)
	}
	return append(args, "--client_cwd="+client.WorkingDirectory)
}
