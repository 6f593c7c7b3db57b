// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "BAZEL_CLIENT_CONFIG"

// Config is the client's site configuration. Every field is optional:
// a zero string, nil pointer, or nil slice leaves the built-in default
// in place.
type Config struct {
	// OutputUserRoot replaces the default output user root.
	OutputUserRoot string `yaml:"output_user_root" json:"output_user_root" toml:"output_user_root"`

	// InstallArchive is the install archive to extract, instead of the
	// one shipped next to the client binary.
	InstallArchive string `yaml:"install_archive" json:"install_archive" toml:"install_archive"`

	// ServerJavabase is the JDK the server runs on.
	ServerJavabase string `yaml:"server_javabase" json:"server_javabase" toml:"server_javabase"`

	// LocalStartupTimeout is how long to wait for a new server, in
	// seconds.
	LocalStartupTimeout *int `yaml:"local_startup_timeout" json:"local_startup_timeout" toml:"local_startup_timeout"`

	// ConnectTimeout bounds the first connection attempt, in seconds.
	ConnectTimeout *int `yaml:"connect_timeout" json:"connect_timeout" toml:"connect_timeout"`

	MaxIdleSecs        *int  `yaml:"max_idle_secs" json:"max_idle_secs" toml:"max_idle_secs"`
	BlockForLock       *bool `yaml:"block_for_lock" json:"block_for_lock" toml:"block_for_lock"`
	BatchCPUScheduling *bool `yaml:"batch_cpu_scheduling" json:"batch_cpu_scheduling" toml:"batch_cpu_scheduling"`
	IONiceLevel        *int  `yaml:"io_nice_level" json:"io_nice_level" toml:"io_nice_level"`

	// HostJVMArgs are passed to the server JVM ahead of any given in rc
	// files or on the command line.
	HostJVMArgs []string `yaml:"host_jvm_args" json:"host_jvm_args" toml:"host_jvm_args"`
}

// Load loads the file named by BAZEL_CLIENT_CONFIG. An unset variable
// yields an empty Config, so the client runs on built-in defaults.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path. The format follows the
// extension: .yaml or .yml, .json or .jsonc (comments and trailing
// commas allowed), and .toml. Unknown keys are errors.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	case ".json", ".jsonc":
		err = decodeJSONC(data, cfg)
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		return nil, fmt.Errorf("client config %s: unsupported extension %q (want .yaml, .yml, .json, .jsonc, or .toml)",
			path, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing client config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decodeJSONC(data []byte, cfg *Config) error {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	return decoder.Decode(cfg)
}

func decodeTOML(data []byte, cfg *Config) error {
	metadata, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
		"USER": os.Getenv("USER"),
	}
	c.OutputUserRoot = expandVars(c.OutputUserRoot, vars)
	c.InstallArchive = expandVars(c.InstallArchive, vars)
	c.ServerJavabase = expandVars(c.ServerJavabase, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, looking in
// vars before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks that paths are absolute and timeouts positive.
func (c *Config) Validate() error {
	var errs []error

	paths := []struct {
		key   string
		value string
	}{
		{"output_user_root", c.OutputUserRoot},
		{"install_archive", c.InstallArchive},
		{"server_javabase", c.ServerJavabase},
	}
	for _, path := range paths {
		if path.value != "" && !filepath.IsAbs(path.value) {
			errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", path.key, path.value))
		}
	}

	if c.LocalStartupTimeout != nil && *c.LocalStartupTimeout < 1 {
		errs = append(errs, fmt.Errorf("local_startup_timeout must be positive, got %d", *c.LocalStartupTimeout))
	}
	if c.ConnectTimeout != nil && *c.ConnectTimeout < 1 {
		errs = append(errs, fmt.Errorf("connect_timeout must be positive, got %d", *c.ConnectTimeout))
	}
	if c.MaxIdleSecs != nil && *c.MaxIdleSecs < 0 {
		errs = append(errs, fmt.Errorf("max_idle_secs must not be negative, got %d", *c.MaxIdleSecs))
	}

	return errors.Join(errs...)
}
