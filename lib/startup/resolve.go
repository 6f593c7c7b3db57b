// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// HashedBaseDir is the default output base for workspace under root:
// the lowercase hex MD5 of the workspace path. Existing installations
// share output bases across client versions, so the naming is fixed.
func HashedBaseDir(root, workspace string) string {
	digest := md5.Sum([]byte(workspace))
	return filepath.Join(root, hex.EncodeToString(digest[:]))
}

// Resolve fills in the default install and output bases, creates the
// output user root and output base, and canonicalizes the output base.
// serverMode (exec-server) requires both bases to be explicit.
func (o *Options) Resolve(workspace, installDigest string, serverMode bool) error {
	if o.InstallBase == "" {
		if serverMode {
			return exitcode.Errorf(exitcode.BadArgv, "exec-server requires --install_base")
		}
		o.InstallBase = filepath.Join(o.OutputUserRoot, "install", installDigest)
	}
	if o.OutputBase == "" {
		if serverMode {
			return exitcode.Errorf(exitcode.BadArgv, "exec-server requires --output_base")
		}
		if err := createSecureOutputRoot(o.OutputUserRoot); err != nil {
			return err
		}
		o.OutputBase = HashedBaseDir(o.OutputUserRoot, workspace)
	}

	outputBase, err := prepareOutputBase(o.OutputBase)
	if err != nil {
		return err
	}
	o.OutputBase = outputBase
	return nil
}

// createSecureOutputRoot creates root if needed and refuses one that
// another user owns or anyone may write to, since output bases under
// it hold the server's connection cookies.
func createSecureOutputRoot(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"couldn't create output user root '%s': %w", root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"couldn't stat output user root '%s': %w", root, err)
	}
	if !info.IsDir() {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError, "'%s' is not a directory", root)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok && int(stat.Uid) != os.Getuid() {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError, "'%s' is not owned by me", root)
	}
	if info.Mode().Perm()&0002 != 0 {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"'%s' has mode %o, world-writable output root is insecure", root, info.Mode().Perm())
	}
	return nil
}

func prepareOutputBase(outputBase string) (string, error) {
	info, err := os.Stat(outputBase)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(outputBase, 0777); err != nil {
			return "", exitcode.Errorf(exitcode.LocalEnvironmentalError,
				"Output base directory '%s' could not be created: %w", outputBase, err)
		}
	case err != nil:
		return "", exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"Output base directory '%s' could not be checked: %w", outputBase, err)
	case !info.IsDir():
		return "", exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"Output base directory '%s' could not be created. It exists but is not a directory.", outputBase)
	}

	if err := unix.Access(outputBase, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return "", exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"Output base directory '%s' must be readable and writable.", outputBase)
	}

	canonical, err := filepath.EvalSymlinks(outputBase)
	if err != nil {
		return "", exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"canonicalizing output base '%s': %w", outputBase, err)
	}
	return canonical, nil
}

// Warnings returns the option warnings to show the user, without the
// "WARNING: " prefix.
func Warnings(product Product, options *Options) []string {
	var warnings []string
	if strings.Contains(options.OutputBase, " ") {
		warnings = append(warnings, fmt.Sprintf(
			"Output base '%s' contains a space. This will probably break the build. You should set a different --output_base.",
			options.OutputBase))
	}
	if strings.Contains(options.OutputUserRoot, " ") {
		warnings = append(warnings, fmt.Sprintf(
			"Output user root \"%s\" contains a space. This will probably break the build. You should set a different --output_user_root.",
			options.OutputUserRoot))
	}
	return append(warnings, product.Warnings(options)...)
}
