// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves XDG Base Directory paths for muster.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "muster"

// ConfigFileName is the config file looked up inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/muster, falling back to ~/.config/muster.
func ConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/muster, falling back to
// ~/.local/state/muster. Scenario reports are written here.
func StateDir() string {
	return appDir("XDG_STATE_HOME", ".local", "state")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// ReportsDir returns the directory scenario reports are written to.
func ReportsDir() string {
	return filepath.Join(StateDir(), "reports")
}

func appDir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
