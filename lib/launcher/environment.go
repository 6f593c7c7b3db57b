// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"
)

// ServerLocale is the locale forced on the server when the host has it.
const ServerLocale = "en_US.ISO-8859-1"

// ignoredVariables are stripped from the server environment. Each
// changes JVM or loader behavior in ways the server cannot tolerate.
var ignoredVariables = []string{"LD_ASSUME_KERNEL", "LD_PRELOAD", "_JAVA_OPTIONS"}

var localeVariables = []string{"LANG", "LANGUAGE", "LC_ALL", "LC_CTYPE"}

// ServerEnvironment derives the server's environment from environ
// (in os.Environ form). Ignored variables are dropped with a warning
// written to warnings. When localeAvailable reports ServerLocale as
// installed, the locale variables are forced to it.
func ServerEnvironment(environ []string, warnings io.Writer, localeAvailable func(string) bool) []string {
	forceLocale := localeAvailable != nil && localeAvailable(ServerLocale)

	result := make([]string, 0, len(environ)+len(localeVariables))
	for _, entry := range environ {
		name, _, _ := strings.Cut(entry, "=")
		if slices.Contains(ignoredVariables, name) {
			fmt.Fprintf(warnings, "WARNING: ignoring %s in environment.\n", name)
			continue
		}
		if forceLocale && slices.Contains(localeVariables, name) {
			continue
		}
		result = append(result, entry)
	}
	if forceLocale {
		for _, name := range localeVariables {
			result = append(result, name+"="+ServerLocale)
		}
	}
	return result
}

// LocaleAvailable reports whether "locale -a" lists name. Locale names
// are compared the way glibc normalizes codesets: case-insensitively
// and ignoring punctuation, so "en_US.ISO-8859-1" matches
// "en_US.iso88591".
func LocaleAvailable(name string) bool {
	output, err := exec.Command("locale", "-a").Output()
	if err != nil {
		return false
	}
	want := normalizeLocale(name)
	for _, line := range strings.Split(string(output), "\n") {
		if normalizeLocale(line) == want {
			return true
		}
	}
	return false
}

func normalizeLocale(name string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
