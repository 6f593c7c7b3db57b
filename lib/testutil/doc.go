// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the client
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a test waiting on a channel fails instead of hanging.
//
// [OutputBase] and [Workspace] build the on-disk fixtures most client
// tests need: an output base directory (with its server/ subdirectory)
// and a workspace directory containing a WORKSPACE marker.
//
// All helpers call t.Fatalf on failure rather than returning errors.
//
// This package has no dependencies inside this module.
package testutil
