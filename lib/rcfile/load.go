// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rcfile

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// DevNull as an explicit rc file ends the explicit list.
const DevNull = "/dev/null"

// Selection names the rc files a client reads and which of them are
// enabled. Paths for disabled locations are ignored.
type Selection struct {
	// Workspace is the workspace root, or empty outside a workspace.
	// The workspace rc file is only read inside one.
	Workspace string

	SystemPath    string
	WorkspaceName string
	HomePath      string

	UseSystem    bool
	UseWorkspace bool
	UseHome      bool

	// IgnoreAll disables every rc file including Explicit.
	IgnoreAll bool

	// Explicit lists the --bazelrc values in command-line order.
	Explicit []string
}

// Paths returns the candidate rc files in read order: system,
// workspace, home, then explicit ones. The second result reports, per
// path, whether the file is optional (a default location that may
// legitimately be absent).
func (s Selection) Paths() ([]string, []bool) {
	if s.IgnoreAll {
		return nil, nil
	}
	var paths []string
	var optional []bool
	add := func(path string, isOptional bool) {
		if path != "" {
			paths = append(paths, path)
			optional = append(optional, isOptional)
		}
	}
	if s.UseSystem {
		add(s.SystemPath, true)
	}
	if s.UseWorkspace && s.Workspace != "" && s.WorkspaceName != "" {
		add(filepath.Join(s.Workspace, s.WorkspaceName), true)
	}
	if s.UseHome {
		add(s.HomePath, true)
	}
	for _, path := range s.Explicit {
		if path == DevNull {
			break
		}
		add(path, false)
	}
	return paths, optional
}

// Load parses every selected rc file. Default locations that do not
// exist are skipped; a file reached through two locations is read
// once. An explicit file that cannot be read, and any malformed file,
// is a BadArgv error.
func Load(selection Selection, logger *slog.Logger) ([]*File, error) {
	paths, optional := selection.Paths()
	seen := make(map[string]bool)
	var files []*File
	for i, path := range paths {
		if optional[i] {
			if _, err := os.Stat(path); err != nil {
				logger.Debug("rc file not present", "path", path)
				continue
			}
		}
		canonical := canonicalPath(path)
		if seen[canonical] {
			logger.Debug("skipping duplicate rc file", "path", path, "canonical", canonical)
			continue
		}
		seen[canonical] = true

		file, err := Parse(path, selection.Workspace, logger)
		if err != nil {
			if errors.Is(err, ErrUnreadable) && !optional[i] {
				return nil, exitcode.Errorf(exitcode.BadArgv,
					"Error: Unable to read .bazelrc file '%s'.", path)
			}
			return nil, exitcode.Wrap(exitcode.BadArgv, err)
		}
		files = append(files, file)
	}
	return files, nil
}
