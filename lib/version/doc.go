// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build information for the client binary.
//
// Package-level variables are injected at build time via -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/buildclient/lib/version.BuildLabel=7.1.0 \
//	    -X github.com/bureau-foundation/buildclient/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
//   - [BuildLabel] -- release label printed by --version
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version, the fallback label
//
// [Banner] formats the --version line; [Info] and [Full] add commit
// and toolchain details for --client_debug logging.
package version
