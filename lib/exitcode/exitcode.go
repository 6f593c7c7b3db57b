// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exitcode

import (
	"errors"
	"fmt"
)

// Code is a process exit code. The named constants are the codes the
// client itself produces; codes received from the server pass through
// unchanged and need not be one of them.
type Code int

const (
	Success Code = 0

	// BadArgv means the invocation is malformed and the user must fix it.
	BadArgv Code = 2

	// Interrupted means the user cancelled the command.
	Interrupted Code = 8

	// LockHeldNoBlockForLock means another client holds the output base
	// lock and --noblock_for_lock was given.
	LockHeldNoBlockForLock Code = 9

	// LocalEnvironmentalError covers host-level problems: unreadable
	// archives, corrupted installs, I/O failures, unexpected server
	// termination.
	LocalEnvironmentalError Code = 36

	// InternalError covers protocol invariant violations. Never
	// downgraded.
	InternalError Code = 37
)

// String returns the symbolic name of a known code, or the decimal
// value for codes produced by the server.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case BadArgv:
		return "bad_argv"
	case Interrupted:
		return "interrupted"
	case LockHeldNoBlockForLock:
		return "lock_held_noblock_for_lock"
	case LocalEnvironmentalError:
		return "local_environmental_error"
	case InternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("%d", int(c))
	}
}

// Error is an error that determines the process exit code.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the process exit code as an int.
func (e *Error) ExitCode() int { return int(e.Code) }

// Errorf builds an *Error with the given code. The format follows
// fmt.Errorf, including %w wrapping.
func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code to err. Returns nil when err is nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// FromError returns the exit code for err: Success for nil, the code
// of the outermost *Error in the chain, or InternalError for errors
// that were never classified.
func FromError(err error) Code {
	if err == nil {
		return Success
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return InternalError
}
