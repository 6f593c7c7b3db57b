// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"slices"
	"testing"

	"github.com/bureau-foundation/buildclient/lib/config"
	"github.com/bureau-foundation/buildclient/lib/rcfile"
)

func TestApplyConfigNil(t *testing.T) {
	defaults := testDefaults()
	options := ApplyConfig(defaults, nil)
	if options.OutputUserRoot != defaults.OutputUserRoot || options.MaxIdleSecs != defaults.MaxIdleSecs {
		t.Errorf("nil config changed defaults: %+v", options)
	}
}

func TestApplyConfigOverridesDefaults(t *testing.T) {
	idle, connect, startupSecs, nice := 60, 5, 300, 4
	block, batchScheduling := false, true
	cfg := &config.Config{
		OutputUserRoot:      "/site/cache",
		ServerJavabase:      "/site/jdk",
		LocalStartupTimeout: &startupSecs,
		ConnectTimeout:      &connect,
		MaxIdleSecs:         &idle,
		BlockForLock:        &block,
		BatchCPUScheduling:  &batchScheduling,
		IONiceLevel:         &nice,
		HostJVMArgs:         []string{"-Xmx1g"},
	}

	options := ApplyConfig(testDefaults(), cfg)
	if options.OutputUserRoot != "/site/cache" || options.ServerJavabase != "/site/jdk" {
		t.Errorf("paths not applied: root=%q javabase=%q", options.OutputUserRoot, options.ServerJavabase)
	}
	if options.LocalStartupTimeout != 300 || options.ConnectTimeoutSecs != 5 || options.MaxIdleSecs != 60 {
		t.Errorf("timeouts not applied: %+v", options)
	}
	if options.BlockForLock || !options.BatchCPUScheduling || options.IONiceLevel != 4 {
		t.Errorf("scheduling not applied: %+v", options)
	}
	if len(options.OptionSources) != 0 {
		t.Errorf("config values recorded as option sources: %v", options.OptionSources)
	}
	if !options.WriteCommandLog {
		t.Error("unset config field cleared a default")
	}
}

// Config host_jvm_args come first, rc files and the command line append.
func TestApplyConfigHostJVMArgsAccumulate(t *testing.T) {
	cfg := &config.Config{HostJVMArgs: []string{"-Xmx1g"}}
	base := ApplyConfig(testDefaults(), cfg)

	rc := []rcfile.StartupFlag{{Source: "/home/u/.bazelrc", Value: "--host_jvm_args=-Xss2m"}}
	options, err := Parse(Bazel{}, base, rc, []string{"--host_jvm_args=-Dx=y"}, "/home/u/ws")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"-Xmx1g", "-Xss2m", "-Dx=y"}
	if !slices.Equal(options.HostJVMArgs, want) {
		t.Errorf("HostJVMArgs = %v, want %v", options.HostJVMArgs, want)
	}
}

// The command line still wins over the site config.
func TestApplyConfigCommandLineWins(t *testing.T) {
	idle := 60
	base := ApplyConfig(testDefaults(), &config.Config{MaxIdleSecs: &idle})
	options, err := Parse(Bazel{}, base, nil, []string{"--max_idle_secs=5"}, "/home/u/ws")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if options.MaxIdleSecs != 5 {
		t.Errorf("MaxIdleSecs = %d, want 5", options.MaxIdleSecs)
	}
}
