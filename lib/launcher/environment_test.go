// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestServerEnvironmentStripsIgnoredVariables(t *testing.T) {
	var warnings bytes.Buffer
	environ := []string{
		"HOME=/home/user",
		"LD_PRELOAD=/lib/libfoo.so",
		"PATH=/bin",
		"_JAVA_OPTIONS=-Xmx1m",
		"LD_ASSUME_KERNEL=2.4.1",
	}
	got := ServerEnvironment(environ, &warnings, nil)

	want := []string{"HOME=/home/user", "PATH=/bin"}
	if !slices.Equal(got, want) {
		t.Errorf("environment = %q, want %q", got, want)
	}
	for _, name := range []string{"LD_PRELOAD", "_JAVA_OPTIONS", "LD_ASSUME_KERNEL"} {
		line := "WARNING: ignoring " + name + " in environment.\n"
		if !strings.Contains(warnings.String(), line) {
			t.Errorf("warnings missing %q:\n%s", line, warnings.String())
		}
	}
}

func TestServerEnvironmentForcesLocale(t *testing.T) {
	environ := []string{"LANG=de_DE.UTF-8", "PATH=/bin", "LC_ALL=C"}
	available := func(name string) bool { return name == ServerLocale }

	got := ServerEnvironment(environ, &bytes.Buffer{}, available)
	want := []string{
		"PATH=/bin",
		"LANG=en_US.ISO-8859-1",
		"LANGUAGE=en_US.ISO-8859-1",
		"LC_ALL=en_US.ISO-8859-1",
		"LC_CTYPE=en_US.ISO-8859-1",
	}
	if !slices.Equal(got, want) {
		t.Errorf("environment = %q, want %q", got, want)
	}
}

func TestServerEnvironmentKeepsLocaleWhenUnavailable(t *testing.T) {
	environ := []string{"LANG=de_DE.UTF-8"}
	got := ServerEnvironment(environ, &bytes.Buffer{}, func(string) bool { return false })
	if !slices.Equal(got, environ) {
		t.Errorf("environment = %q, want %q", got, environ)
	}
}

func TestServerEnvironmentDoesNotAliasInput(t *testing.T) {
	environ := []string{"A=1", "LD_PRELOAD=x", "B=2"}
	ServerEnvironment(environ, &bytes.Buffer{}, nil)
	if environ[1] != "LD_PRELOAD=x" {
		t.Errorf("input modified: %q", environ)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"en_US.ISO-8859-1", "en_US.iso88591"},
		{"en_US.UTF-8", "en_US.utf8"},
		{" C.UTF-8 ", "c.utf8"},
	}
	for _, test := range tests {
		if normalizeLocale(test.a) != normalizeLocale(test.b) {
			t.Errorf("normalizeLocale(%q) != normalizeLocale(%q)", test.a, test.b)
		}
	}
	if normalizeLocale("en_US.ISO-8859-1") == normalizeLocale("en_US.ISO-8859-15") {
		t.Error("distinct codesets normalized equal")
	}
}
