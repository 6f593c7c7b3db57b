// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package startup parses the client's startup options and derives the
// server command line from them.
//
// A client invocation has the shape
//
//	bazel [startup options] <command> [command args]
//
// [SplitCommandLine] separates the three parts, validating every
// startup option against the known set and rewriting "--flag value"
// into "--flag=value". [Parse] then applies, lowest precedence first,
// the built-in and config-file defaults, the "startup" lines of the rc
// files, and the command-line startup options, remembering which source
// set each option. [Options.Resolve] fills in the output and install
// bases and validates them, and [ServerArgs] builds the argv a server
// is started with. That argv is compared verbatim against the running
// server's to decide whether a restart is needed, so its content and
// order must be a pure function of the options.
//
// Startup options are spelled the same way in rc files and on the
// command line: "--name=value" for valued options, "--name" or
// "--noname" for booleans. A few options (rc file selection, for
// instance) are only accepted on the command line.
//
// Product-specific behavior (names, rc file locations, the server jar,
// extra server flags, warnings) sits behind the [Product] interface;
// [Bazel] is the only implementation.
package startup
