// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package exitcode defines the client's process exit code taxonomy and
// an error type that carries one of those codes up to the process
// boundary.
//
// Components return ordinary wrapped errors for conditions the caller
// is expected to handle. When a failure must end the process with a
// specific code (a cookie mismatch is always [InternalError], a busy
// lock with --noblock_for_lock is always [LockHeldNoBlockForLock]),
// the component returns an [*Error] built with [Errorf]. [FromError]
// recovers the code anywhere up the call chain, including through
// fmt.Errorf("...: %w") wrapping.
package exitcode
