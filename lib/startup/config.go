// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"slices"

	"github.com/bureau-foundation/buildclient/lib/config"
)

// ApplyConfig layers the site configuration onto defaults. The result
// is the base that rc files and the command line override. Values from
// the config file are not recorded in OptionSources: the server only
// hears about rc files.
func ApplyConfig(defaults Options, cfg *config.Config) Options {
	options := *defaults.Clone()
	if cfg == nil {
		return options
	}
	if cfg.OutputUserRoot != "" {
		options.OutputUserRoot = cfg.OutputUserRoot
	}
	if cfg.ServerJavabase != "" {
		options.ServerJavabase = cfg.ServerJavabase
	}
	if cfg.LocalStartupTimeout != nil {
		options.LocalStartupTimeout = *cfg.LocalStartupTimeout
	}
	if cfg.ConnectTimeout != nil {
		options.ConnectTimeoutSecs = *cfg.ConnectTimeout
	}
	if cfg.MaxIdleSecs != nil {
		options.MaxIdleSecs = *cfg.MaxIdleSecs
	}
	if cfg.BlockForLock != nil {
		options.BlockForLock = *cfg.BlockForLock
	}
	if cfg.BatchCPUScheduling != nil {
		options.BatchCPUScheduling = *cfg.BatchCPUScheduling
	}
	if cfg.IONiceLevel != nil {
		options.IONiceLevel = *cfg.IONiceLevel
	}
	options.HostJVMArgs = slices.Concat(cfg.HostJVMArgs, options.HostJVMArgs)
	return options
}
