// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package startup

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
)

// flagInfo describes one startup option.
type flagInfo struct {
	name            string
	nullary         bool
	path            bool
	commandLineOnly bool
}

// flagTable is every startup option, keyed by name, derived from the
// tags on Options.
var flagTable = buildFlagTable()

func buildFlagTable() map[string]flagInfo {
	table := make(map[string]flagInfo)
	optionsType := reflect.TypeOf(Options{})
	for i := range optionsType.NumField() {
		field := optionsType.Field(i)
		name := field.Tag.Get("flag")
		if name == "" {
			continue
		}
		table[name] = flagInfo{
			name:            name,
			nullary:         field.Type.Kind() == reflect.Bool,
			path:            field.Tag.Get("path") == "true",
			commandLineOnly: field.Tag.Get("rc") == "no",
		}
	}
	return table
}

// lookupFlag resolves a flag name as written, including the "no"
// spelling of a boolean. The second result reports that spelling, the
// third whether the flag exists.
func lookupFlag(name string) (flagInfo, bool, bool) {
	if info, ok := flagTable[name]; ok {
		return info, false, true
	}
	if positive, found := strings.CutPrefix(name, "no"); found {
		if info, ok := flagTable[positive]; ok && info.nullary {
			return info, true, true
		}
	}
	return flagInfo{}, false, false
}

// bindFlags registers a pflag entry for every tagged field of options,
// using the field's current value as the default so that layered
// defaults (built-in, then config file) show through.
func bindFlags(options *Options, flagSet *pflag.FlagSet) {
	value := reflect.ValueOf(options).Elem()
	optionsType := value.Type()
	for i := range optionsType.NumField() {
		field := optionsType.Field(i)
		name := field.Tag.Get("flag")
		if name == "" {
			continue
		}
		description := field.Tag.Get("desc")
		switch target := value.Field(i).Addr().Interface().(type) {
		case *string:
			flagSet.StringVar(target, name, *target, description)
		case *bool:
			flagSet.BoolVar(target, name, *target, description)
		case *int:
			flagSet.IntVar(target, name, *target, description)
		case *[]string:
			flagSet.Var(&appendValue{target: target}, name, description)
		default:
			panic(fmt.Sprintf("startup: unsupported type %s for flag --%s", field.Type, name))
		}
	}
}

// appendValue is a repeatable string flag that always appends, so
// values from the config file, rc files, and command line accumulate.
// pflag's StringArray replaces its default on first use.
type appendValue struct {
	target *[]string
}

func (v *appendValue) Set(value string) error {
	*v.target = append(*v.target, value)
	return nil
}

func (v *appendValue) String() string {
	return "[" + strings.Join(*v.target, ",") + "]"
}

func (v *appendValue) Type() string { return "stringArray" }
