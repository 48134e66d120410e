// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fileadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstep/pipeline/pkg/history"
	"github.com/agentstep/pipeline/pkg/step"
)

func TestAdapterSaveLoadRoundTrip(t *testing.T) {
	a := New(t.TempDir())
	require.NoError(t, a.Init(context.Background()))

	s := step.New(step.NewID(), step.TypeFileOperation, time.Unix(1000, 0))
	s.Complete(step.StatusCompleted, time.Unix(1001, 0))
	cp := step.NewCheckpoint("first", time.Unix(1002, 0), []string{s.ID})

	data := history.ConversationData{
		ConversationID:           "conv-1",
		StepHistory:              []*step.Step{s},
		Checkpoints:              []step.Checkpoint{cp},
		StepCountSinceCheckpoint: 0,
		UpdatedAt:                time.Unix(1003, 0),
	}
	require.NoError(t, a.SaveConversation(context.Background(), "conv-1", data))

	loaded, err := a.LoadConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, loaded.StepHistory, 1)
	assert.Equal(t, s.ID, loaded.StepHistory[0].ID)
	assert.Equal(t, step.TypeFileOperation, loaded.StepHistory[0].Type)
	require.Len(t, loaded.Checkpoints, 1)
	assert.Equal(t, "first", loaded.Checkpoints[0].Label)
}

func TestAdapterLoadMissingReturnsNotFound(t *testing.T) {
	a := New(t.TempDir())
	require.NoError(t, a.Init(context.Background()))

	_, err := a.LoadConversation(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, history.ErrNotFound))
}

func TestAdapterListAndDeleteConversations(t *testing.T) {
	a := New(t.TempDir())
	require.NoError(t, a.Init(context.Background()))

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
