// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network and pipe errors and endpoints for
// the command channel.
package netutil
