// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// OutputBase creates an output base directory with an empty server/
// subdirectory (mode 0700) and returns the output base path. The
// directory is removed when the test completes.
//
// The path is made short (directly under the system temp dir) because
// the server's log and connection files are also opened by helper
// processes that receive the path on their command line.
func OutputBase(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("", "ob-*")
	if err != nil {
		t.Fatalf("creating output base: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	if err := os.Mkdir(filepath.Join(directory, "server"), 0700); err != nil {
		t.Fatalf("creating server directory: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(directory)
	if err != nil {
		t.Fatalf("resolving output base: %v", err)
	}
	return resolved
}

// Workspace creates a directory containing an empty WORKSPACE file and
// returns its symlink-free path.
func Workspace(t *testing.T) string {
	t.Helper()
	directory := t.TempDir()
	if err := os.WriteFile(filepath.Join(directory, "WORKSPACE"), nil, 0644); err != nil {
		t.Fatalf("writing WORKSPACE: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(directory)
	if err != nil {
		t.Fatalf("resolving workspace: %v", err)
	}
	return resolved
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
