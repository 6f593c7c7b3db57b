// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bureau-foundation/buildclient/lib/workspace"
)

// ServerInputs are the facts besides Options that the server command
// line depends on.
type ServerInputs struct {
	// Workspace is the workspace root, or the working directory in
	// batch mode outside a workspace.
	Workspace string

	// InstallDigest identifies the install archive.
	InstallDigest string

	Javabase     string
	JavabaseKind JavabaseKind

	// ArchiveContents lists the install base's files, relative to it.
	// Directories holding shared libraries go on java.library.path.
	ArchiveContents []string
}

// ServerArgs returns the server's argv, argv[0] included. Options must
// be resolved. Every server flag uses the --name=value form so that
// argv comparison is a plain string match.
func ServerArgs(product Product, options *Options, inputs ServerInputs) []string {
	args := []string{LowercaseName(product) + "(" + workspace.PrettyName(inputs.Workspace) + ")"}
	args = append(args, product.JVMArgumentPrefix(inputs.Javabase)...)
	args = append(args,
		"-XX:+HeapDumpOnOutOfMemoryError",
		"-XX:HeapDumpPath="+options.OutputBase,
	)
	if inputs.JavabaseKind == JavabaseEmbedded {
		args = append(args,
			"--add-opens=java.base/java.nio=ALL-UNNAMED",
			"--add-opens=java.base/java.lang=ALL-UNNAMED",
		)
	}
	args = append(args, "-Xverify:none")
	args = append(args, "-Djava.library.path="+libraryPath(options.InstallBase, inputs.ArchiveContents))
	args = append(args, "-Dfile.encoding=ISO-8859-1")
	if options.HostJVMDebug {
		args = append(args,
			"-Xdebug",
			"-Xrunjdwp:transport=dt_socket,server=y,address=5005",
		)
	}
	args = append(args, options.HostJVMArgs...)
	args = append(args, "-jar", filepath.Join(options.InstallBase, product.ServerJar()))

	// --batch must be the first server flag.
	if options.Batch {
		args = append(args, "--batch")
	} else {
		args = append(args, "--max_idle_secs="+strconv.Itoa(options.MaxIdleSecs))
		args = append(args, boolFlag("shutdown_on_low_sys_mem", options.ShutdownOnLowSysMem))
	}
	if options.CommandPort != 0 {
		args = append(args, "--command_port="+strconv.Itoa(options.CommandPort))
	}
	args = append(args,
		"--connect_timeout_secs="+strconv.Itoa(options.ConnectTimeoutSecs),
		"--output_user_root="+options.OutputUserRoot,
		"--install_base="+options.InstallBase,
		"--install_md5="+inputs.InstallDigest,
		"--output_base="+options.OutputBase,
		"--workspace_directory="+inputs.Workspace,
	)
	if inputs.JavabaseKind == JavabaseSystem {
		args = append(args, "--default_system_javabase="+inputs.Javabase)
	}
	if options.ServerJVMOut != "" {
		args = append(args, "--server_jvm_out="+options.ServerJVMOut)
	}
	if options.FailureDetailOut != "" {
		args = append(args, "--failure_detail_out="+options.FailureDetailOut)
	}
	args = append(args,
		boolFlag("write_command_log", options.WriteCommandLog),
		boolFlag("watchfs", options.Watchfs),
		"--client_debug="+strconv.FormatBool(options.ClientDebug),
	)
	if inputs.JavabaseKind == JavabaseExplicit {
		args = append(args, "--server_javabase="+inputs.Javabase)
	}
	if options.HostJVMDebug {
		args = append(args, "--host_jvm_debug")
	}
	if options.HostJVMProfile != "" {
		args = append(args, "--host_jvm_profile="+options.HostJVMProfile)
	}
	for _, arg := range options.HostJVMArgs {
		args = append(args, "--host_jvm_args="+arg)
	}
	// The server reads the policy from the request in client/server
	// mode; only a batch server needs it on its command line.
	if options.Batch && options.InvocationPolicy != "" {
		args = append(args, "--invocation_policy="+options.InvocationPolicy)
	}
	args = append(args, "--product_name="+product.Name())
	args = append(args, product.ExtraServerOptions(options)...)
	return append(args, OptionSourcesArg(options.OptionSources))
}

// OptionSourcesArg encodes sources as
// --option_sources=name1:source1:name2:source2, sorted by name, with
// '_' escaped as "_U" and ':' as "_C".
func OptionSourcesArg(sources map[string]string) string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	builder.WriteString("--option_sources=")
	for i, name := range names {
		if i > 0 {
			builder.WriteByte(':')
		}
		builder.WriteString(EscapeOptionSource(name))
		builder.WriteByte(':')
		builder.WriteString(EscapeOptionSource(sources[name]))
	}
	return builder.String()
}

// EscapeOptionSource makes s safe inside --option_sources.
func EscapeOptionSource(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "_", "_U"), ":", "_C")
}

func boolFlag(name string, value bool) string {
	if value {
		return "--" + name
	}
	return "--no" + name
}

// libraryPath joins the distinct directories of installBase that hold
// shared libraries, in archive order.
func libraryPath(installBase string, contents []string) string {
	var directories []string
	seen := make(map[string]bool)
	for _, entry := range contents {
		if !isSharedLibrary(entry) {
			continue
		}
		directory := filepath.Join(installBase, filepath.Dir(entry))
		if seen[directory] {
			continue
		}
		seen[directory] = true
		directories = append(directories, directory)
	}
	return strings.Join(directories, string(filepath.ListSeparator))
}

func isSharedLibrary(name string) bool {
	return strings.HasSuffix(name, ".so") || strings.HasSuffix(name, ".dylib")
}
