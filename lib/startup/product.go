// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"strings"
)

// Product is the set of capabilities that differ between products
// built on this client.
type Product interface {
	// Name is the display name, e.g. "Bazel".
	Name() string

	// RcBaseName is the name of the workspace and home rc files.
	RcBaseName() string

	// SystemRcPath is the machine-wide rc file.
	SystemRcPath() string

	// ServerJar is the path of the server jar inside the install base.
	ServerJar() string

	// InstallArchiveName is the file name of the install archive
	// shipped next to the client binary.
	InstallArchiveName() string

	// JVMArgumentPrefix returns JVM flags placed before all others.
	JVMArgumentPrefix(javabase string) []string

	// ExtraServerOptions returns product flags appended after the
	// common server startup flags.
	ExtraServerOptions(options *Options) []string

	// Warnings returns user-facing warnings about the options, without
	// the "WARNING: " prefix.
	Warnings(options *Options) []string
}

// LowercaseName returns the product name as used in paths and argv[0].
func LowercaseName(product Product) string {
	return strings.ToLower(product.Name())
}

// Bazel is the Bazel product.
type Bazel struct{}

var _ Product = Bazel{}

func (Bazel) Name() string                      { return "Bazel" }
func (Bazel) RcBaseName() string                { return ".bazelrc" }
func (Bazel) SystemRcPath() string              { return "/etc/bazel.bazelrc" }
func (Bazel) ServerJar() string                 { return "A-server.jar" }
func (Bazel) InstallArchiveName() string        { return "bazel-install.tar.zst" }
func (Bazel) JVMArgumentPrefix(string) []string { return nil }

// ExtraServerOptions forwards the rc file selection so the server
// reports the same rc sources the client read.
func (Bazel) ExtraServerOptions(options *Options) []string {
	var result []string
	for _, path := range options.Bazelrc {
		result = append(result, "--bazelrc="+path)
	}
	if !options.UseSystemRc {
		result = append(result, "--nosystem_rc")
	}
	if !options.UseWorkspaceRc {
		result = append(result, "--noworkspace_rc")
	}
	if !options.UseHomeRc {
		result = append(result, "--nohome_rc")
	}
	return result
}

func (Bazel) Warnings(options *Options) []string {
	var warnings []string
	if options.IgnoreAllRcFiles && len(options.Bazelrc) > 0 {
		warnings = append(warnings, "Value of --bazelrc is ignored, since --ignore_all_rc_files is on.")
	}
	return warnings
}
