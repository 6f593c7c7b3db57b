// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package installbase

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// KeyFile names the file in the install base that records the digest
// of the archive it was extracted from.
const KeyFile = "install_base_key"

const (
	// pinnedAge is how far in the future extracted files' mtimes are
	// set.
	pinnedAge = 10 * 365 * 24 * time.Hour

	// untouchedThreshold is the minimum remaining future offset for a
	// file to count as unmodified. Anything written after extraction
	// gets a current mtime and falls below it.
	untouchedThreshold = 365 * 24 * time.Hour
)

// DefaultArchivePath returns the archive location used when none is
// configured: name, next to the client binary.
func DefaultArchivePath(binaryPath, name string) string {
	return filepath.Join(filepath.Dir(binaryPath), name)
}

// Options configure Ensure.
type Options struct {
	// Product appears in the version mismatch message.
	Product string

	// Clock supplies the extraction and verification time. Nil means
	// clock.Real().
	Clock clock.Clock

	// Logger receives extraction progress. Nil discards it.
	Logger *slog.Logger
}

// Ensure makes installBase a verified extraction of archive. When the
// directory is missing it is extracted and the time spent extracting
// is returned; otherwise the existing directory is verified and the
// returned duration is zero. Errors carry
// exitcode.LocalEnvironmentalError.
func Ensure(archive *Archive, installBase string, options Options) (time.Duration, error) {
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var elapsed time.Duration
	info, err := os.Stat(installBase)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		start := clk.Now()
		if err := extract(archive, installBase, clk, logger); err != nil {
			return 0, err
		}
		elapsed = clk.Now().Sub(start)
	case err != nil:
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"could not stat install base directory '%s': %v", installBase, err)
	case !info.IsDir():
		return 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"install base directory '%s' could not be created. It exists but is not a directory.", installBase)
	}

	if err := verify(archive, installBase, options.Product, clk); err != nil {
		return 0, err
	}
	return elapsed, nil
}

func extract(archive *Archive, installBase string, clk clock.Clock, logger *slog.Logger) error {
	parent := filepath.Dir(installBase)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"couldn't create install base parent '%s': %v", parent, err)
	}
	staging, err := os.MkdirTemp(parent, filepath.Base(installBase)+".tmp.")
	if err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"couldn't create temporary install base in '%s': %v", parent, err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.RemoveAll(staging)
		}
	}()

	logger.Info("extracting install archive",
		"archive", archive.Path,
		"install_base", installBase,
		"staging", staging,
	)

	if err := unpack(archive.Path, staging); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"failed to extract %s into '%s': %v", archive.Path, staging, err)
	}
	if err := os.WriteFile(filepath.Join(staging, KeyFile), []byte(archive.Digest+"\n"), 0644); err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"writing %s: %v", KeyFile, err)
	}

	pinned := clk.Now().Add(pinnedAge)
	for _, name := range archive.Contents {
		target := filepath.Join(staging, filepath.FromSlash(name))
		if err := os.Chtimes(target, pinned, pinned); err != nil {
			return exitcode.Errorf(exitcode.LocalEnvironmentalError,
				"failed to set timestamp on '%s': %v", target, err)
		}
	}

	if err := os.Rename(staging, installBase); err != nil {
		// Another client finished first. Its copy is verified below like
		// any existing install base.
		if errors.Is(err, fs.ErrExist) || errors.Is(err, unix.ENOTEMPTY) {
			logger.Info("install base created concurrently", "install_base", installBase)
			return nil
		}
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"install base directory '%s' could not be renamed into place: %v", installBase, err)
	}
	renamed = true
	return nil
}

// unpack extracts the directories, regular files, and symlinks of the
// archive at archivePath under directory.
func unpack(archivePath, directory string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return walk(bufio.NewReader(file), func(header *tar.Header, content io.Reader) error {
		target := filepath.Join(directory, filepath.FromSlash(header.Name))
		switch header.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			return writeEntry(target, header.FileInfo().Mode().Perm()|0600, content)
		case tar.TypeSymlink:
			if path.IsAbs(header.Linkname) {
				return fmt.Errorf("archive symlink %q has absolute target %q", header.Name, header.Linkname)
			}
			if _, err := entryName(path.Join(path.Dir(header.Name), header.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			return os.Symlink(header.Linkname, target)
		default:
			return nil
		}
	})
}

func writeEntry(target string, mode fs.FileMode, content io.Reader) error {
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func verify(archive *Archive, installBase, product string, clk clock.Clock) error {
	threshold := clk.Now().Add(untouchedThreshold)
	for _, name := range archive.Contents {
		target := filepath.Join(installBase, filepath.FromSlash(name))
		info, err := os.Lstat(target)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().After(threshold) {
			return exitcode.Errorf(exitcode.LocalEnvironmentalError,
				"corrupt installation: file '%s' is missing or modified. Please remove '%s' and try again.",
				target, installBase)
		}
	}

	keyPath := filepath.Join(installBase, KeyFile)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"cannot read '%s': %v", keyPath, err)
	}
	found := strings.TrimSpace(string(data))
	if found != archive.Digest {
		return exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"The install_base directory '%s' contains a different %s version (found %s but this binary is %s). Remove it or specify a different --install_base.",
			installBase, product, found, archive.Digest)
	}
	return nil
}
