// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package installbase

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Archive is an install archive on disk.
type Archive struct {
	// Path is the archive file.
	Path string

	// Digest is the hex BLAKE3 hash of the archive file.
	Digest string

	// Contents lists the regular files in the archive, slash-separated
	// and relative to the install base, in archive order.
	Contents []string
}

// Open reads the archive at archivePath once, computing its digest and
// listing its files.
func Open(archivePath string) (*Archive, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening install archive: %w", err)
	}
	defer file.Close()

	hasher := blake3.New()
	stream := bufio.NewReader(io.TeeReader(file, hasher))

	archive := &Archive{Path: archivePath}
	err = walk(stream, func(header *tar.Header, _ io.Reader) error {
		if header.Typeflag == tar.TypeReg {
			archive.Contents = append(archive.Contents, header.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading install archive %s: %w", archivePath, err)
	}

	// Trailing bytes after the tar end marker still count toward the
	// digest.
	if _, err := io.Copy(io.Discard, stream); err != nil {
		return nil, fmt.Errorf("hashing install archive %s: %w", archivePath, err)
	}
	archive.Digest = hex.EncodeToString(hasher.Sum(nil))
	return archive, nil
}

// walk decompresses stream and calls visit for every tar entry with a
// validated, cleaned name.
func walk(stream *bufio.Reader, visit func(header *tar.Header, content io.Reader) error) error {
	decompressed, closeDecompressor, err := decompressor(stream)
	if err != nil {
		return err
	}
	defer closeDecompressor()

	reader := tar.NewReader(decompressed)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		name, err := entryName(header.Name)
		if err != nil {
			return err
		}
		header.Name = name
		if err := visit(header, reader); err != nil {
			return err
		}
	}
}

func decompressor(stream *bufio.Reader) (io.Reader, func(), error) {
	magic, err := stream.Peek(4)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive header: %w", err)
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(stream)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return decoder, decoder.Close, nil
	case bytes.Equal(magic, lz4Magic):
		return lz4.NewReader(stream), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized archive compression (magic % x)", magic)
	}
}

// entryName cleans a tar entry name and rejects names that would land
// outside the extraction directory.
func entryName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(name, "./"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry %q escapes the install base", name)
	}
	return cleaned, nil
}
