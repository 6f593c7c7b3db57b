// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rcfile reads the client's rc files.
//
// An rc file is a list of lines of the form
//
//	<command> <option> <option> ...
//
// where <command> is a server command ("build", "test", "common"), the
// pseudo-command "startup" for client startup flags, or one of the
// directives "import <path>" and "try-import <path>". Lines are
// tokenized with shell quoting rules, a trailing backslash continues a
// line, and lines starting with '#' are comments. Imports are expanded
// in place, a path starting with %workspace%/ is resolved against the
// workspace root, and an import cycle is an error. try-import of a
// file that cannot be read is skipped.
//
// Each parsed [File] records the canonical path of every file it read
// (the top-level file first, then imports in the order they were
// reached) and, for each command, the options in file order with the
// index of the source that contributed them. [Load] finds and parses
// the standard set of rc files; [CommandArgs] turns them into the
// --rc_source and --default_override arguments the server expects on
// every command, and [StartupFlags] extracts the startup lines for the
// client's own flag parser.
package rcfile
