// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package fileadapter persists History conversations as one JSON file per
// conversation id under a configured directory, the typical file-based
// persistence layout for an embeddable pipeline with no external database.
package fileadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentstep/pipeline/pkg/history"
)

// Adapter is a history.Adapter backed by one JSON file per conversation id.
type Adapter struct {
	dir string
}

// New constructs an Adapter storing conversation files under dir.
func New(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// Init creates dir if it does not already exist.
func (a *Adapter) Init(ctx context.Context) error {
	return os.MkdirAll(a.dir, 0o755)
}

// SaveConversation writes data for conversationID via a temp-file-then-rename
// so a reader never observes a partially written file.
func (a *Adapter) SaveConversation(ctx context.Context, conversationID string, data history.ConversationData) error {
	path := a.path(conversationID)

	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("fileadapter: marshal %q: %w", conversationID, err)
	}

	tmp, err := os.CreateTemp(a.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("fileadapter: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("fileadapter: write %q: %w", conversationID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fileadapter: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fileadapter: rename into place for %q: %w", conversationID, err)
	}
	return nil
}

// LoadConversation reads conversationID's file. It returns
// history.ErrNotFound if no file exists yet.
func (a *Adapter) LoadConversation(ctx context.Context, conversationID string) (history.ConversationData, error) {
	buf, err := os.ReadFile(a.path(conversationID))
	if os.IsNotExist(err) {
		return history.ConversationData{}, history.ErrNotFound
	}
	if err != nil {
		return history.ConversationData{}, fmt.Errorf("fileadapter: read %q: %w", conversationID, err)
	}

	var data history.ConversationData
	if err := json.Unmarshal(buf, &data); err != nil {
		return history.ConversationData{}, fmt.Errorf("fileadapter: unmarshal %q: %w", conversationID, err)
	}
	return data, nil
}

// DeleteConversation removes conversationID's file, if present.
func (a *Adapter) DeleteConversation(ctx context.Context, conversationID string) error {
	err := os.Remove(a.path(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fileadapter: delete %q: %w", conversationID, err)
	}
	return nil
}

// ListConversations returns every conversation id with a stored file.
func (a *Adapter) ListConversations(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fileadapter: list %q: %w", a.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// path keeps only the final element of conversationID+".json" (via
// filepath.Base) before joining it, so a caller-supplied id can never escape
// a.dir via "../" segments; an id containing a separator is not rejected.
func (a *Adapter) path(conversationID string) string {
	name := conversationID + ".json"
	return filepath.Join(a.dir, filepath.Base(name))
}
