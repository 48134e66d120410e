// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writePatternFile(t *testing.T, path, id string) {
	t.Helper()
	content := `
patterns:
  - id: ` + id + `
    type: analysis
    priority: 70
    confidence: 0.8
    triggers:
      tool_usage:
        - read_file
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHotReloaderAppliesFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	writePatternFile(t, path, "first_pattern")

	initial, err := LoadFile(path)
	require.NoError(t, err)
	lib, err := NewLibrary(initial)
	require.NoError(t, err)

	events := make(chan string, 4)
	hr, err := NewHotReloader(lib, dir, HotReloadConfig{
		Enabled:    true,
		DebounceMs: 20,
		OnUpdate: func(event, _ string, _ error) {
			events <- event
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hr.Start(ctx))
	defer hr.Stop()

	writePatternFile(t, path, "second_pattern")

	select {
	case ev := <-events:
		require.Equal(t, "reload", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hot reload")
	}

	got := lib.Patterns()
	require.Len(t, got, 1)
	require.Equal(t, "second_pattern", got[0].ID)
}

func TestHotReloaderIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	writePatternFile(t, path, "first_pattern")

	initial, err := LoadFile(path)
	require.NoError(t, err)
	lib, err := NewLibrary(initial)
	require.NoError(t, err)

	events := make(chan string, 4)
	hr, err := NewHotReloader(lib, dir, HotReloadConfig{
		Enabled:    true,
		DebounceMs: 20,
		OnUpdate: func(event, _ string, _ error) {
			events <- event
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hr.Start(ctx))
	defer hr.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected hot reload event for a non-yaml file: %s", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewHotReloaderRequiresDir(t *testing.T) {
	lib := NewDefaultLibrary()
	_, err := NewHotReloader(lib, "", HotReloadConfig{})
	require.Error(t, err)
}
