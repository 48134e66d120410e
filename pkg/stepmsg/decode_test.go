// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stepmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLinePlainTextContent(t *testing.T) {
	line := []byte(`{"type":"user","id":"m1","session_id":"s1","content":"hello there"}`)

	m, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, KindUser, m.Kind)
	assert.Equal(t, "hello there", m.Text())
}

func TestDecodeLineStructuredBlocks(t *testing.T) {
	line := []byte(`{
		"type": "assistant",
		"id": "m2",
		"session_id": "s1",
		"content": [
			{"type": "text", "text": "reading file"},
			{"type": "tool_use", "id": "tu1", "name": "read_file", "input": "{\"path\":\"a.go\"}"}
		]
	}`)

	m, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, KindAssistant, m.Kind)
	assert.Equal(t, "reading file", m.Text())

	uses := m.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "read_file", uses[0].Name)
}

func TestDecodeLineToolResultBlock(t *testing.T) {
	line := []byte(`{
		"type": "tool_result",
		"id": "m3",
		"session_id": "s1",
		"content": [
			{"type": "tool_result", "tool_use_id": "tu1", "content": "file contents", "is_error": false}
		]
	}`)

	m, err := DecodeLine(line)
	require.NoError(t, err)

	results := m.ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "file contents", results[0].Content)
	assert.False(t, results[0].IsError)
}

func TestDecodeLineUnknownTypeErrors(t *testing.T) {
	line := []byte(`{"type":"bogus","id":"m4","session_id":"s1"}`)
	_, err := DecodeLine(line)
	assert.Error(t, err)
}

func TestDecodeLineInvalidJSONErrors(t *testing.T) {
	_, err := DecodeLine([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeLineNoContentIsEmptyMessage(t *testing.T) {
	line := []byte(`{"type":"result","id":"m5","session_id":"s1"}`)
	m, err := DecodeLine(line)
	require.NoError(t, err)
	assert.True(t, m.IsTerminal())
	assert.Empty(t, m.Parts())
}
