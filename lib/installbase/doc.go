// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package installbase unpacks the server's install archive.
//
// The client ships with an install archive: a tar stream compressed
// with zstd or lz4 (told apart by their frame magic) holding the
// server jar, its native libraries, and optionally an embedded JDK.
// The archive's install digest, a BLAKE3 hash of the archive bytes,
// names the install base directory, so every client version gets its
// own.
//
// [Ensure] extracts the archive into a temporary sibling of the
// install base and renames it into place. Concurrent clients race
// benignly: the loser of the rename discards its copy. Extracted files
// have their modification time pinned ten years in the future; a later
// run verifies that every archive file is still present with a
// far-future mtime and that the install_base_key file names the same
// digest, so an install base that was edited, partially deleted, or
// written by another version is refused instead of silently used.
package installbase
