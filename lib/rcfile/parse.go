// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rcfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/bureau-foundation/buildclient/lib/workspace"
)

var (
	// ErrUnreadable means a file (the top-level one or a mandatory
	// import) could not be read.
	ErrUnreadable = errors.New("rc file unreadable")

	// ErrInvalidFormat means a line could not be tokenized or an import
	// directive was malformed.
	ErrInvalidFormat = errors.New("invalid rc file format")

	// ErrImportLoop means a file imports itself, directly or through
	// other imports.
	ErrImportLoop = errors.New("rc file import loop")
)

const (
	importDirective    = "import"
	tryImportDirective = "try-import"
)

// Option is one option word from an rc file.
type Option struct {
	Value string

	// SourceIndex indexes File.SourcePaths.
	SourceIndex int
}

// File is a parsed rc file with its imports expanded.
type File struct {
	filename string
	sources  []string
	options  map[string][]Option
}

// Parse reads filename and everything it imports. workspace resolves
// %workspace%/ import paths and may be empty outside a workspace.
func Parse(filename, workspaceRoot string, logger *slog.Logger) (*File, error) {
	file := &File{
		filename: filename,
		options:  make(map[string][]Option),
	}
	p := &parser{workspace: workspaceRoot, logger: logger, file: file}
	if err := p.parse(filename, []string{filename}); err != nil {
		return nil, err
	}
	return file, nil
}

// Filename returns the path Parse was called with.
func (f *File) Filename() string { return f.filename }

// SourcePaths returns the canonical paths of every file read, the
// top-level file first.
func (f *File) SourcePaths() []string { return f.sources }

// Options returns the options for command in the order they appear.
func (f *File) Options(command string) []Option { return f.options[command] }

// SourceOf returns the canonical path of the file option came from.
func (f *File) SourceOf(option Option) string { return f.sources[option.SourceIndex] }

// Commands returns every command that has at least one option, sorted.
func (f *File) Commands() []string {
	commands := make([]string, 0, len(f.options))
	for command := range f.options {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return commands
}

type parser struct {
	workspace string
	logger    *slog.Logger
	file      *File
}

func (p *parser) parse(filename string, importStack []string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreadable, filename, err)
	}

	sourceIndex := len(p.file.sources)
	p.file.sources = append(p.file.sources, canonicalPath(filename))
	p.logger.Debug("parsing rc file", "path", filename, "source_index", sourceIndex)

	content := strings.ReplaceAll(string(data), "\\\r\n", "")
	content = strings.ReplaceAll(content, "\\\n", "")

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		words, err := tokenize(line)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidFormat, filename, err)
		}
		if len(words) == 0 {
			continue
		}

		command := words[0]
		if command != importDirective && command != tryImportDirective {
			for _, word := range words[1:] {
				p.file.options[command] = append(p.file.options[command], Option{
					Value:       word,
					SourceIndex: sourceIndex,
				})
			}
			continue
		}

		if len(words) != 2 {
			return fmt.Errorf("%w: invalid import declaration in rc file '%s': '%s'", ErrInvalidFormat, filename, line)
		}
		importPath := workspace.RelativizeRcPath(p.workspace, words[1])
		if slices.Contains(importStack, importPath) {
			return fmt.Errorf("%w: import loop detected:\n  %s\n  %s",
				ErrImportLoop, strings.Join(importStack, "\n  "), importPath)
		}

		err = p.parse(importPath, slices.Concat(importStack, []string{importPath}))
		if err != nil {
			if command == tryImportDirective && errors.Is(err, ErrUnreadable) {
				p.logger.Info("skipped optional import, the file either does not exist or is not readable",
					"path", importPath, "importer", filename)
				continue
			}
			return err
		}
	}
	return nil
}

// tokenize splits line into words with shell quoting. Unquoted shell
// operators (;, &, |, <, >) are rejected rather than silently ending
// the line.
func tokenize(line string) ([]string, error) {
	parser := shellwords.NewParser()
	words, err := parser.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("tokenizing %q: %w", line, err)
	}
	if parser.Position >= 0 {
		return nil, fmt.Errorf("unquoted shell operator in %q; quote the option", line)
	}
	return words, nil
}

func canonicalPath(path string) string {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return absolute
	}
	return resolved
}
