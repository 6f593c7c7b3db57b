// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/rcfile"
)

func testDefaults() Options {
	defaults := Defaults(Bazel{})
	defaults.OutputUserRoot = "/cache/_bazel_user"
	return defaults
}

func TestDefaults(t *testing.T) {
	options := Defaults(Bazel{})
	if options.IONiceLevel != -1 || options.MaxIdleSecs != 10800 || !options.BlockForLock ||
		!options.WriteCommandLog || options.ConnectTimeoutSecs != 30 || options.LocalStartupTimeout != 120 {
		t.Errorf("unexpected defaults: %+v", options)
	}
	if !options.UseSystemRc || !options.UseWorkspaceRc || !options.UseHomeRc || options.IgnoreAllRcFiles {
		t.Errorf("rc files should all be enabled by default: %+v", options)
	}
	if !strings.Contains(options.OutputUserRoot, "/bazel/_bazel_") {
		t.Errorf("OutputUserRoot = %q, want .../bazel/_bazel_<user>", options.OutputUserRoot)
	}
}

func TestParsePrecedenceAndSources(t *testing.T) {
	rcFlags := []rcfile.StartupFlag{
		{Source: "/etc/bazel.bazelrc", Value: "--max_idle_secs=60"},
		{Source: "/home/u/.bazelrc", Value: "--max_idle_secs=120"},
		{Source: "/home/u/.bazelrc", Value: "--nowrite_command_log"},
		{Source: "/home/u/.bazelrc", Value: "--batch"},
	}
	options, err := Parse(Bazel{}, testDefaults(), rcFlags, []string{"--nobatch", "--watchfs"}, "/ws")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if options.MaxIdleSecs != 120 {
		t.Errorf("MaxIdleSecs = %d, want the later rc value 120", options.MaxIdleSecs)
	}
	if options.WriteCommandLog {
		t.Error("--nowrite_command_log from rc was not applied")
	}
	if options.Batch {
		t.Error("command-line --nobatch should override rc --batch")
	}
	if !options.Watchfs {
		t.Error("--watchfs not applied")
	}

	wantSources := map[string]string{
		"max_idle_secs":     "/home/u/.bazelrc",
		"write_command_log": "/home/u/.bazelrc",
		"batch":             "",
		"watchfs":           "",
	}
	if len(options.OptionSources) != len(wantSources) {
		t.Errorf("OptionSources = %v, want %v", options.OptionSources, wantSources)
	}
	for name, want := range wantSources {
		if got, ok := options.OptionSources[name]; !ok || got != want {
			t.Errorf("OptionSources[%s] = (%q, %v), want %q", name, got, ok, want)
		}
	}
}

func TestParseDoesNotMutateDefaults(t *testing.T) {
	defaults := testDefaults()
	defaults.HostJVMArgs = []string{"-Xss4m"}
	if _, err := Parse(Bazel{}, defaults, nil, []string{"--host_jvm_args=-Xmx1g", "--batch"}, "/ws"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if defaults.Batch || !slices.Equal(defaults.HostJVMArgs, []string{"-Xss4m"}) {
		t.Errorf("defaults were modified: %+v", defaults)
	}
}

func TestParseRepeatableAccumulates(t *testing.T) {
	defaults := testDefaults()
	defaults.HostJVMArgs = []string{"-Xss4m"}
	rcFlags := []rcfile.StartupFlag{{Source: "/rc", Value: "--host_jvm_args=-Xmx2g"}}
	options, err := Parse(Bazel{}, defaults, rcFlags, []string{"--host_jvm_args=-Dfoo=a,b"}, "/ws")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"-Xss4m", "-Xmx2g", "-Dfoo=a,b"}
	if !slices.Equal(options.HostJVMArgs, want) {
		t.Errorf("HostJVMArgs = %q, want %q", options.HostJVMArgs, want)
	}
}

func TestParseRelativePaths(t *testing.T) {
	options, err := Parse(Bazel{}, testDefaults(), nil, []string{
		"--output_base=out",
		"--server_jvm_out=/abs/jvm.log",
		"--output_user_root=../root",
	}, "/home/u/ws")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if options.OutputBase != "/home/u/ws/out" {
		t.Errorf("OutputBase = %q", options.OutputBase)
	}
	if options.ServerJVMOut != "/abs/jvm.log" {
		t.Errorf("ServerJVMOut = %q", options.ServerJVMOut)
	}
	if options.OutputUserRoot != "/home/u/root" {
		t.Errorf("OutputUserRoot = %q", options.OutputUserRoot)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		rcFlags []rcfile.StartupFlag
		args    []string
		want    string
	}{
		{
			name: "nullary with value",
			args: []string{"--batch=true"},
			want: "In argument '--batch=true': option '--batch' does not take a value.",
		},
		{
			name:    "valued option without value in rc",
			rcFlags: []rcfile.StartupFlag{{Source: "/rc", Value: "--output_base"}},
			want:    "Startup option '--output_base' expects a value.",
		},
		{
			name:    "rc selection from an rc file",
			rcFlags: []rcfile.StartupFlag{{Source: "/rc", Value: "--nohome_rc"}},
			want:    "Can't specify --nohome_rc in the .bazelrc file.",
		},
		{
			name:    "bazelrc from an rc file",
			rcFlags: []rcfile.StartupFlag{{Source: "/rc", Value: "--bazelrc=/x"}},
			want:    "Can't specify --bazelrc=/x in the .bazelrc file.",
		},
		{
			name:    "unknown in rc",
			rcFlags: []rcfile.StartupFlag{{Source: "/rc", Value: "--bogus"}},
			want:    "Unknown startup option: '--bogus'.",
		},
		{
			name: "invocation policy twice",
			args: []string{"--invocation_policy=a", "--invocation_policy=b"},
			want: "The startup flag --invocation_policy cannot be specified multiple times.",
		},
		{
			name: "not an integer",
			args: []string{"--max_idle_secs=soon"},
			want: "Invalid argument to --max_idle_secs: 'soon'.",
		},
		{
			name: "io nice level too high",
			args: []string{"--io_nice_level=8"},
			want: "Invalid argument to --io_nice_level: '8'.\nMust not exceed 7.",
		},
		{
			name: "negative idle time",
			args: []string{"--max_idle_secs=-1"},
			want: "Invalid argument to --max_idle_secs: '-1'.",
		},
		{
			name: "connect timeout out of range",
			args: []string{"--connect_timeout_secs=121"},
			want: "Invalid argument to --connect_timeout_secs: '121'.\nMust be an integer between 1 and 120.",
		},
		{
			name: "zero startup timeout",
			args: []string{"--local_startup_timeout_secs=0"},
			want: "Invalid argument to --local_startup_timeout_secs: '0'.\nMust be a positive integer.",
		},
		{
			name: "port out of range",
			args: []string{"--command_port=70000"},
			want: "Invalid argument to --command_port: '70000'.\nMust be a valid port number or 0.",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(Bazel{}, testDefaults(), test.rcFlags, test.args, "/ws")
			if exitcode.FromError(err) != exitcode.BadArgv {
				t.Fatalf("error code = %v, want BadArgv (err %v)", exitcode.FromError(err), err)
			}
			if !strings.HasPrefix(err.Error(), test.want) {
				t.Errorf("error = %q, want prefix %q", err.Error(), test.want)
			}
		})
	}
}

func TestRcSelection(t *testing.T) {
	selection, err := RcSelection(Bazel{}, testDefaults(),
		[]string{"--nosystem_rc", "--bazelrc=extra.rc", "--bazelrc=/dev/null"},
		"/home/u/ws", "/home/u/ws", "/home/u")
	if err != nil {
		t.Fatalf("RcSelection: %v", err)
	}
	if selection.UseSystem || !selection.UseWorkspace || !selection.UseHome || selection.IgnoreAll {
		t.Errorf("toggles = %+v", selection)
	}
	if selection.SystemPath != "/etc/bazel.bazelrc" || selection.HomePath != "/home/u/.bazelrc" ||
		selection.WorkspaceName != ".bazelrc" || selection.Workspace != "/home/u/ws" {
		t.Errorf("paths = %+v", selection)
	}
	if !slices.Equal(selection.Explicit, []string{"/home/u/ws/extra.rc", "/dev/null"}) {
		t.Errorf("Explicit = %q", selection.Explicit)
	}
}

func TestRcSelectionPropagatesErrors(t *testing.T) {
	_, err := RcSelection(Bazel{}, testDefaults(), []string{"--batch=1"}, "/", "", "")
	if exitcode.FromError(err) != exitcode.BadArgv {
		t.Errorf("error = %v, want BadArgv", err)
	}
}
