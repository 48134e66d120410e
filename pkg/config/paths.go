// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns the directory the pipeline uses for persisted history,
// checkpoints, and pattern overrides.
//
// Priority:
// 1. STEPPIPE_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.steppipe (default)
//
// The returned path is absolute, except the relative ".steppipe" returned
// when the home directory cannot be determined. A leading "~/" is expanded to the
// user's home directory. Relative paths are converted to absolute paths.
//
// This is read directly from os.Getenv(), not from viper, so it can resolve
// the config file's own location before viper is initialized.
func DataDir() string {
	if dir := os.Getenv("STEPPIPE_DATA_DIR"); dir != "" {
		return expandPath(dir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".steppipe"
	}
	return filepath.Join(homeDir, ".steppipe")
}

// PatternsDir returns the directory the pipeline watches for additional or
// overriding Pattern YAML files.
//
// Priority:
// 1. STEPPIPE_PATTERNS_DIR environment variable (if set and non-empty)
// 2. <DataDir>/patterns
func PatternsDir() string {
	if dir := os.Getenv("STEPPIPE_PATTERNS_DIR"); dir != "" {
		return expandPath(dir)
	}
	return filepath.Join(DataDir(), "patterns")
}

// SubDir returns a subdirectory within the data directory.
// Example: SubDir("conversations") returns ~/.steppipe/conversations.
func SubDir(name string) string {
	return filepath.Join(DataDir(), name)
}

// expandPath expands a leading "~" and resolves the path to an absolute one.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
