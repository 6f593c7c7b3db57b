// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the client's site configuration file.
//
// The file is named by the BAZEL_CLIENT_CONFIG environment variable.
// There is no search path and no ~/.config discovery: when the variable
// is unset the client runs on its built-in defaults, and when it is set
// the file must exist and parse. YAML, JSON with comments, and TOML are
// accepted, selected by file extension.
//
// Config values sit between the built-in defaults and rc files:
// anything given in an rc file's startup lines or on the command line
// overrides them. Path fields expand ${HOME}, ${USER}, and
// ${VAR:-default} after loading.
//
// This package depends on no other client packages.
package config
