// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package outputlock serializes client startup for one output base.
//
// The lock is an advisory flock(2) on <output_base>/lock. A client
// holds it from the moment it decides whether a server must be started
// until the request has been handed to a server, so two clients can
// never launch duplicate servers for one output base. It is released
// as soon as the request is sent: the server enforces its own
// command-level exclusion, and holding the client lock for the length
// of a build would serialize unrelated commands.
//
// The kernel drops the lock when the holding process exits or execs
// (the descriptor is close-on-exec), so a crashed client never wedges
// the output base.
package outputlock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/bureau-foundation/buildclient/lib/clock"
	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// FileName is the lock file's name inside the output base.
const FileName = "lock"

// retryDelay is how often a blocked acquire retries the lock.
const retryDelay = 50 * time.Millisecond

// Options control how Acquire behaves when the lock is busy.
type Options struct {
	// Block waits for the lock instead of failing with
	// LockHeldNoBlockForLock.
	Block bool

	// Clock measures the wait. Nil means clock.Real().
	Clock clock.Clock

	// Notify receives the one-line "waiting" message shown to the user
	// while blocked. Nil discards it.
	Notify io.Writer
}

// Lock is a held output base lock.
type Lock struct {
	path string
	file *flock.Flock

	mu   sync.Mutex
	held bool
}

// Acquire takes the lock for outputBase. When the lock is busy and
// options.Block is false, the returned error carries
// exitcode.LockHeldNoBlockForLock. When blocking, Acquire waits with no
// timeout other than ctx and returns the time spent waiting.
func Acquire(ctx context.Context, outputBase string, options Options) (*Lock, time.Duration, error) {
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	path := filepath.Join(outputBase, FileName)
	file := flock.New(path)

	locked, err := file.TryLock()
	if err != nil {
		return nil, 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"couldn't acquire file lock on %s: %w", path, err)
	}

	var waited time.Duration
	if !locked {
		owner := describeOwner(path)
		if !options.Block {
			return nil, 0, exitcode.Errorf(exitcode.LockHeldNoBlockForLock,
				"another command (%s) is running; exiting immediately because --noblock_for_lock was given", owner)
		}
		if options.Notify != nil {
			fmt.Fprintf(options.Notify, "Another command (%s) is running. Waiting for it to complete...\n", owner)
		}

		start := clk.Now()
		locked, err = file.TryLockContext(ctx, retryDelay)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
			return nil, 0, exitcode.Errorf(exitcode.Interrupted,
				"interrupted while waiting for file lock on %s", path)
		}
		if err != nil {
			return nil, 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
				"waiting for file lock on %s: %w", path, err)
		}
		waited = clk.Now().Sub(start)
	}

	// The content is informational, for the next client that finds the
	// lock busy.
	owner := fmt.Sprintf("pid=%d owner=client\n", os.Getpid())
	if err := os.WriteFile(path, []byte(owner), 0644); err != nil {
		file.Unlock()
		return nil, 0, exitcode.Errorf(exitcode.LocalEnvironmentalError,
			"writing lock owner to %s: %w", path, err)
	}

	return &Lock{path: path, file: file, held: true}, waited, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Held reports whether Release has not yet been called.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Release drops the lock. Safe to call any number of times, and on a
// nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.file.Unlock(); err != nil {
		return fmt.Errorf("releasing %s: %w", l.path, err)
	}
	return nil
}

func describeOwner(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "owner unknown"
	}
	return string(bytes.TrimSpace(data))
}
