// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Options are the client's startup options. Fields with a flag tag are
// settable as --<flag>; path-tagged values are made absolute against
// the client's working directory when parsed. rc:"no" marks options
// that may only be given on the command line.
type Options struct {
	OutputBase       string `flag:"output_base" path:"true" desc:"directory for all build outputs of this workspace"`
	OutputUserRoot   string `flag:"output_user_root" path:"true" desc:"directory holding all output and install bases of this user"`
	InstallBase      string `flag:"install_base" path:"true" desc:"directory the install archive is extracted into"`
	ServerJavabase   string `flag:"server_javabase" path:"true" desc:"JDK the server runs on"`
	ServerJVMOut     string `flag:"server_jvm_out" path:"true" desc:"file the server's stdout and stderr are appended to"`
	FailureDetailOut string `flag:"failure_detail_out" path:"true" desc:"file the server writes a failure detail to on abrupt exit"`

	HostJVMArgs    []string `flag:"host_jvm_args" desc:"JVM flag for the server, repeatable"`
	HostJVMProfile string   `flag:"host_jvm_profile" desc:"profiler to attach to the server JVM"`
	HostJVMDebug   bool     `flag:"host_jvm_debug" desc:"start the server JVM listening for a debugger on port 5005"`

	Batch               bool `flag:"batch" desc:"run the command in a one-shot server process"`
	BatchCPUScheduling  bool `flag:"batch_cpu_scheduling" desc:"run the server under SCHED_BATCH"`
	IONiceLevel         int  `flag:"io_nice_level" desc:"best-effort IO priority 0-7 for the server, -1 to leave unset"`
	MaxIdleSecs         int  `flag:"max_idle_secs" desc:"seconds an idle server waits before exiting, 0 for never"`
	ShutdownOnLowSysMem bool `flag:"shutdown_on_low_sys_mem" desc:"let an idle server exit under memory pressure"`
	BlockForLock        bool `flag:"block_for_lock" desc:"wait for a running command instead of failing"`
	WriteCommandLog     bool `flag:"write_command_log" desc:"keep a copy of command output in the output base"`
	Watchfs             bool `flag:"watchfs" desc:"watch the workspace for changes instead of scanning it"`
	ClientDebug         bool `flag:"client_debug" desc:"log client internals to stderr"`
	Preemptible         bool `flag:"preemptible" desc:"let a later command preempt this one"`
	ConnectTimeoutSecs  int  `flag:"connect_timeout_secs" desc:"seconds to wait for each server ping"`
	LocalStartupTimeout int  `flag:"local_startup_timeout_secs" desc:"seconds to wait for a new server to answer"`
	CommandPort         int  `flag:"command_port" desc:"port the server listens on, 0 to pick one"`

	InvocationPolicy string `flag:"invocation_policy" desc:"policy applied to command options, given once"`

	IgnoreAllRcFiles bool     `flag:"ignore_all_rc_files" rc:"no" desc:"read no rc files at all"`
	UseSystemRc      bool     `flag:"system_rc" rc:"no" desc:"read the system rc file"`
	UseWorkspaceRc   bool     `flag:"workspace_rc" rc:"no" desc:"read the workspace rc file"`
	UseHomeRc        bool     `flag:"home_rc" rc:"no" desc:"read the home rc file"`
	Bazelrc          []string `flag:"bazelrc" rc:"no" path:"true" desc:"additional rc file, repeatable; /dev/null ends the list"`

	// OptionSources maps a flag name to the rc file that last set it,
	// or "" when it came from the command line. Defaults are absent.
	OptionSources map[string]string
}

// Defaults returns the built-in defaults for product.
func Defaults(product Product) Options {
	name := LowercaseName(product)
	return Options{
		OutputUserRoot:      filepath.Join(xdg.CacheHome, name, "_"+name+"_"+currentUser()),
		IONiceLevel:         -1,
		MaxIdleSecs:         3 * 3600,
		BlockForLock:        true,
		WriteCommandLog:     true,
		ConnectTimeoutSecs:  30,
		LocalStartupTimeout: 120,
		UseSystemRc:         true,
		UseWorkspaceRc:      true,
		UseHomeRc:           true,
	}
}

// ConnectTimeout is --connect_timeout_secs as a duration.
func (o *Options) ConnectTimeout() time.Duration {
	return time.Duration(o.ConnectTimeoutSecs) * time.Second
}

// StartupTimeout is --local_startup_timeout_secs as a duration.
func (o *Options) StartupTimeout() time.Duration {
	return time.Duration(o.LocalStartupTimeout) * time.Second
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	clone := *o
	clone.HostJVMArgs = append([]string(nil), o.HostJVMArgs...)
	clone.Bazelrc = append([]string(nil), o.Bazelrc...)
	clone.OptionSources = make(map[string]string, len(o.OptionSources))
	for name, source := range o.OptionSources {
		clone.OptionSources[name] = source
	}
	return &clone
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if current, err := user.Current(); err == nil {
		return current.Username
	}
	return "unknown"
}
