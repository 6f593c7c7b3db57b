// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace locates the source tree a command runs in.
//
// A workspace is the nearest directory, walking up from the working
// directory, that contains a regular file named WORKSPACE.bazel or
// WORKSPACE. Directories and other non-regular entries with those
// names do not count, so a checkout that happens to have a
// "WORKSPACE/" folder is not mistaken for a root.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Markers are the file names that identify a workspace root, in
// lookup order.
var Markers = []string{"WORKSPACE.bazel", "WORKSPACE"}

// Prefix is the rc-file path prefix that stands for the workspace
// root, as in "import %workspace%/tools/common.bazelrc".
const Prefix = "%workspace%/"

// Find returns the workspace containing directory, or false when no
// ancestor (up to and including the filesystem root) is one.
func Find(directory string) (string, bool) {
	directory = filepath.Clean(directory)
	for {
		if IsRoot(directory) {
			return directory, true
		}
		parent := filepath.Dir(directory)
		if parent == directory {
			return "", false
		}
		directory = parent
	}
}

// IsRoot reports whether directory contains a workspace marker file.
func IsRoot(directory string) bool {
	for _, marker := range Markers {
		info, err := os.Stat(filepath.Join(directory, marker))
		if err == nil && info.Mode().IsRegular() {
			return true
		}
	}
	return false
}

// PrettyName is the short name shown in the server's argv[0], e.g. a
// server for ~/src/build_root appears in ps(1) as "bazel(build_root)".
func PrettyName(workspace string) string {
	name := filepath.Base(workspace)
	if name == "." || name == string(filepath.Separator) {
		return workspace
	}
	return name
}

// RelativizeRcPath replaces a leading %workspace%/ in path with the
// workspace root. Paths without the prefix, and any path when there is
// no workspace, are returned unchanged.
func RelativizeRcPath(workspace, path string) string {
	if workspace == "" || !strings.HasPrefix(path, Prefix) {
		return path
	}
	return filepath.Join(workspace, strings.TrimPrefix(path, Prefix))
}
