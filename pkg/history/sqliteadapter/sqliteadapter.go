// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sqliteadapter persists History conversations in a SQLite database
// via database/sql, one row per conversation id. It uses the pure-Go
// modernc.org/sqlite driver (see internal/sqlitedriver) so it builds and
// runs without a CGO toolchain.
package sqliteadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/agentstep/pipeline/internal/sqlitedriver"
	"github.com/agentstep/pipeline/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

// Adapter is a history.Adapter backed by a SQLite database.
type Adapter struct {
	db   *sql.DB
	path string
}

// New constructs an Adapter against the database file at path. The
// connection is opened lazily by Init.
func New(path string) *Adapter {
	return &Adapter{path: path}
}

// Init opens the database connection and ensures the schema exists.
func (a *Adapter) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite3", a.path)
	if err != nil {
		return fmt.Errorf("sqliteadapter: open %q: %w", a.path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("sqliteadapter: init schema: %w", err)
	}
	a.db = db
	return nil
}

// SaveConversation upserts the row for conversationID.
func (a *Adapter) SaveConversation(ctx context.Context, conversationID string, data history.ConversationData) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sqliteadapter: marshal %q: %w", conversationID, err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, conversationID, string(buf), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqliteadapter: save %q: %w", conversationID, err)
	}
	return nil
}

// LoadConversation returns the stored record for conversationID. It returns
// history.ErrNotFound if no row exists yet.
func (a *Adapter) LoadConversation(ctx context.Context, conversationID string) (history.ConversationData, error) {
	var raw string
	err := a.db.QueryRowContext(ctx, `SELECT data FROM conversations WHERE conversation_id = ?`, conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return history.ConversationData{}, history.ErrNotFound
	}
	if err != nil {
		return history.ConversationData{}, fmt.Errorf("sqliteadapter: load %q: %w", conversationID, err)
	}

	var data history.ConversationData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return history.ConversationData{}, fmt.Errorf("sqliteadapter: unmarshal %q: %w", conversationID, err)
	}
	return data, nil
}

// DeleteConversation removes the row for conversationID, if present.
func (a *Adapter) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("sqliteadapter: delete %q: %w", conversationID, err)
	}
	return nil
}

// ListConversations returns every stored conversation id.
func (a *Adapter) ListConversations(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT conversation_id FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("sqliteadapter: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqliteadapter: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cleanup closes the underlying database connection.
func (a *Adapter) Cleanup(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
