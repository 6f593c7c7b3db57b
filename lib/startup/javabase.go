// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"os"
	"os/exec"
	"path/filepath"
)

// JavabaseKind says where the server's JDK came from.
type JavabaseKind int

const (
	// JavabaseExplicit is --server_javabase (or the config file).
	JavabaseExplicit JavabaseKind = iota

	// JavabaseEmbedded is the JDK shipped in the install base.
	JavabaseEmbedded

	// JavabaseSystem is JAVA_HOME or the java found on PATH.
	JavabaseSystem
)

// EmbeddedJDK is the JDK location inside an install base.
const EmbeddedJDK = "embedded_tools/jdk"

// ResolveJavabase picks the JDK the server runs on. Resolve must have
// filled in InstallBase.
func ResolveJavabase(options *Options, getenv func(string) string) (string, JavabaseKind) {
	if options.ServerJavabase != "" {
		return options.ServerJavabase, JavabaseExplicit
	}
	embedded := filepath.Join(options.InstallBase, EmbeddedJDK)
	if info, err := os.Stat(embedded); err == nil && info.IsDir() {
		return embedded, JavabaseEmbedded
	}
	return systemJavabase(getenv), JavabaseSystem
}

// ServerExecutable is the java binary of javabase.
func ServerExecutable(javabase string) string {
	return filepath.Join(javabase, "bin", "java")
}

func systemJavabase(getenv func(string) string) string {
	if home := getenv("JAVA_HOME"); home != "" {
		return home
	}
	java, err := exec.LookPath("java")
	if err != nil {
		return "/usr"
	}
	if resolved, err := filepath.EvalSymlinks(java); err == nil {
		java = resolved
	}
	return filepath.Dir(filepath.Dir(java))
}
