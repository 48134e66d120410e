// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqliteadapter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstep/pipeline/pkg/history"
	"github.com/agentstep/pipeline/pkg/step"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(func() { _ = a.Cleanup(context.Background()) })
	return a
}

func TestAdapterSaveLoadRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	s := step.New(step.NewID(), step.TypeAnalysis, time.Unix(2000, 0))
	s.Complete(step.StatusCompleted, time.Unix(2001, 0))

	data := history.ConversationData{
		ConversationID: "conv-sql",
		StepHistory:    []*step.Step{s},
	}
	require.NoError(t, a.SaveConversation(context.Background(), "conv-sql", data))

	loaded, err := a.LoadConversation(context.Background(), "conv-sql")
	require.NoError(t, err)
	require.Len(t, loaded.StepHistory, 1)
	assert.Equal(t, s.ID, loaded.StepHistory[0].ID)
}

func TestAdapterSaveUpserts(t *testing.T) {
	a := newTestAdapter(t)

	first := history.ConversationData{ConversationID: "conv-upsert", StepCountSinceCheckpoint: 1}
	second := history.ConversationData{ConversationID: "conv-upsert", StepCountSinceCheckpoint: 2}
	require.NoError(t, a.SaveConversation(context.Background(), "conv-upsert", first))
	require.NoError(t, a.SaveConversation(context.Background(), "conv-upsert", second))

	loaded, err := a.LoadConversation(context.Background(), "conv-upsert")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.StepCountSinceCheckpoint)
}

func TestAdapterLoadMissingReturnsNotFound(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.LoadConversation(context.Background(), "missing")
	assert.True(t, errors.Is(err, history.ErrNotFound))
}

func TestAdapterDeleteAndList(t *testing.T) {
	a := newTestAdapter(t)

	require.NoError(t, a.SaveConversation(context.Background(), "a", history.ConversationData{ConversationID: "a"}))
	require.NoError(t, a.SaveConversation(context.Background(), "b", history.ConversationData{ConversationID: "b"}))

	ids, err := a.ListConversations(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, a.DeleteConversation(context.Background(), "a"))
	ids, err = a.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}
