// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package history

import (
	"context"
	"time"

	"github.com/agentstep/pipeline/pkg/step"
)

// ConversationData is the durable record a persistence Adapter stores and
// loads for one conversation id: the full bounded Step history, the set of
// Checkpoints taken against it, and the auto-checkpoint counter.
type ConversationData struct {
	ConversationID           string             `json:"conversation_id"`
	StepHistory              []*step.Step       `json:"step_history"`
	Checkpoints              []step.Checkpoint  `json:"checkpoints"`
	StepCountSinceCheckpoint int                `json:"step_count_since_checkpoint"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// Adapter is the persistence collaborator History delegates durable storage
// to. Ordering and atomicity within a single save are the adapter's
// responsibility; History assumes each call either fully succeeds or fails
// with the prior state left intact.
type Adapter interface {
	// Init prepares the adapter for use (opening a file handle, a database
	// connection, creating schema). Called once before any other method.
	Init(ctx context.Context) error
	// SaveConversation durably stores data under conversationID, replacing
	// any prior record for that id.
	SaveConversation(ctx context.Context, conversationID string, data ConversationData) error
	// LoadConversation returns the stored record for conversationID. It
	// returns ErrNotFound (via errors.Is) if no record exists yet.
	LoadConversation(ctx context.Context, conversationID string) (ConversationData, error)
	// DeleteConversation removes any stored record for conversationID. It
	// is not an error to delete an id with no record.
	DeleteConversation(ctx context.Context, conversationID string) error
	// ListConversations returns every conversation id the adapter holds.
	ListConversations(ctx context.Context) ([]string, error)
}

// CleanupAdapter is an optional extension an Adapter may implement to
// release background resources (temp files, idle connections) on Close.
type CleanupAdapter interface {
	Cleanup(ctx context.Context) error
}
