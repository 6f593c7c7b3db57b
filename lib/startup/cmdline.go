// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"strings"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// CommandLine is a client argv split into its parts.
type CommandLine struct {
	// BinaryPath is argv[0].
	BinaryPath string

	// StartupArgs are the startup options, each in --name=value or
	// --[no]name form.
	StartupArgs []string

	// Command is the first argument after the startup options, or
	// empty when there is none.
	Command string

	CommandArgs []string
}

// SplitCommandLine splits argv at the first argument that is not a
// startup option. Every startup option must be known; a valued option
// written "--name value" is rewritten to "--name=value".
func SplitCommandLine(product Product, argv []string) (*CommandLine, error) {
	commandLine := &CommandLine{}
	if len(argv) == 0 {
		return commandLine, nil
	}
	commandLine.BinaryPath = argv[0]

	i := 1
	for ; i < len(argv) && isStartupArg(argv[i]); i++ {
		arg := argv[i]
		name, _, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		info, _, known := lookupFlag(name)
		if !strings.HasPrefix(arg, "--") || !known {
			return nil, exitcode.Errorf(exitcode.BadArgv,
				"Unknown startup option: '%s'.\n  For more info, run '%s help startup_options'.",
				arg, LowercaseName(product))
		}
		if info.nullary || hasValue {
			commandLine.StartupArgs = append(commandLine.StartupArgs, arg)
			continue
		}
		if i+1 >= len(argv) {
			return nil, exitcode.Errorf(exitcode.BadArgv,
				"Startup option '%s' expects a value.\nUsage: '%s=somevalue' or '%s somevalue'.\n  For more info, run '%s help startup_options'.",
				arg, arg, arg, LowercaseName(product))
		}
		i++
		commandLine.StartupArgs = append(commandLine.StartupArgs, arg+"="+argv[i])
	}

	if i < len(argv) {
		commandLine.Command = argv[i]
		commandLine.CommandArgs = append([]string(nil), argv[i+1:]...)
	}
	return commandLine, nil
}

// isStartupArg reports whether arg is in startup-option position
// syntax: any dash-prefixed word other than a request for help.
func isStartupArg(arg string) bool {
	switch arg {
	case "--help", "-help", "-h":
		return false
	}
	return strings.HasPrefix(arg, "-")
}
