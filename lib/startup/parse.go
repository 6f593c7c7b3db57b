// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
	"github.com/bureau-foundation/buildclient/lib/rcfile"
)

// CommandLineSource is the OptionSources value for options given on
// the command line.
const CommandLineSource = ""

// Parse layers rc-file startup flags and then command-line startup
// arguments (as produced by SplitCommandLine) over defaults. Relative
// paths are resolved against workingDirectory. Every failure is a
// BadArgv error.
func Parse(product Product, defaults Options, rcFlags []rcfile.StartupFlag, startupArgs []string, workingDirectory string) (*Options, error) {
	options := defaults.Clone()
	options.OptionSources = make(map[string]string)

	flagSet := pflag.NewFlagSet(LowercaseName(product), pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	bindFlags(options, flagSet)

	p := &optionParser{
		product:          product,
		options:          options,
		flagSet:          flagSet,
		workingDirectory: workingDirectory,
	}
	for _, flag := range rcFlags {
		if err := p.apply(flag.Value, flag.Source); err != nil {
			return nil, err
		}
	}
	for _, arg := range startupArgs {
		if err := p.apply(arg, CommandLineSource); err != nil {
			return nil, err
		}
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// RcSelection parses only the command-line startup arguments to decide
// which rc files to read.
func RcSelection(product Product, defaults Options, startupArgs []string, workingDirectory, workspaceRoot, home string) (rcfile.Selection, error) {
	options, err := Parse(product, defaults, nil, startupArgs, workingDirectory)
	if err != nil {
		return rcfile.Selection{}, err
	}
	selection := rcfile.Selection{
		Workspace:     workspaceRoot,
		SystemPath:    product.SystemRcPath(),
		WorkspaceName: product.RcBaseName(),
		UseSystem:     options.UseSystemRc,
		UseWorkspace:  options.UseWorkspaceRc,
		UseHome:       options.UseHomeRc,
		IgnoreAll:     options.IgnoreAllRcFiles,
		Explicit:      options.Bazelrc,
	}
	if home != "" {
		selection.HomePath = filepath.Join(home, product.RcBaseName())
	}
	return selection, nil
}

type optionParser struct {
	product          Product
	options          *Options
	flagSet          *pflag.FlagSet
	workingDirectory string
}

func (p *optionParser) apply(arg, source string) error {
	name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
	info, negated, known := lookupFlag(name)
	if !strings.HasPrefix(arg, "--") || !known {
		return p.fail("Unknown startup option: '%s'.\n  For more info, run '%s help startup_options'.",
			arg, LowercaseName(p.product))
	}
	if source != CommandLineSource && info.commandLineOnly {
		return p.fail("Can't specify %s in the %s file.", arg, p.product.RcBaseName())
	}

	switch {
	case info.nullary && hasValue:
		return p.fail("In argument '%s': option '--%s' does not take a value.", arg, name)
	case info.nullary:
		value = "true"
		if negated {
			value = "false"
		}
	case !hasValue:
		return p.fail("Startup option '%s' expects a value.\nUsage: '%s=somevalue' or '%s somevalue'.\n  For more info, run '%s help startup_options'.",
			arg, arg, arg, LowercaseName(p.product))
	}

	if info.name == "invocation_policy" && p.flagSet.Changed(info.name) {
		return p.fail("The startup flag --invocation_policy cannot be specified multiple times.")
	}
	if info.path && value != "" && !filepath.IsAbs(value) {
		value = filepath.Join(p.workingDirectory, value)
	}

	if err := p.flagSet.Set(info.name, value); err != nil {
		return p.fail("Invalid argument to --%s: '%s'.", info.name, value)
	}
	p.options.OptionSources[info.name] = source
	return nil
}

func (p *optionParser) fail(format string, args ...any) error {
	return exitcode.Errorf(exitcode.BadArgv, format, args...)
}

func (o *Options) validate() error {
	invalid := func(name string, value int, requirement string) error {
		message := fmt.Sprintf("Invalid argument to --%s: '%d'.", name, value)
		if requirement != "" {
			message += "\n" + requirement
		}
		return exitcode.Errorf(exitcode.BadArgv, "%s", message)
	}
	if o.IONiceLevel > 7 {
		return invalid("io_nice_level", o.IONiceLevel, "Must not exceed 7.")
	}
	if o.MaxIdleSecs < 0 {
		return invalid("max_idle_secs", o.MaxIdleSecs, "")
	}
	if o.ConnectTimeoutSecs < 1 || o.ConnectTimeoutSecs > 120 {
		return invalid("connect_timeout_secs", o.ConnectTimeoutSecs, "Must be an integer between 1 and 120.")
	}
	if o.LocalStartupTimeout < 1 {
		return invalid("local_startup_timeout_secs", o.LocalStartupTimeout, "Must be a positive integer.")
	}
	if o.CommandPort < 0 || o.CommandPort > 65535 {
		return invalid("command_port", o.CommandPort, "Must be a valid port number or 0.")
	}
	return nil
}
