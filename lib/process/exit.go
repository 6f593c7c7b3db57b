// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// Fatal writes "FATAL: err" to stderr and exits with the code carried
// by err (InternalError when err carries none). Use it in main() for
// errors from run().
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
	os.Exit(int(exitcode.FromError(err)))
}
