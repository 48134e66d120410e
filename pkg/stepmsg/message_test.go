// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stepmsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTextConcatenatesTextParts(t *testing.T) {
	m := New("msg-1", "sess-1", KindAssistant)
	m.AddPart(ContentText{Text: "I will "})
	m.AddPart(ToolUse{ID: "tu-1", Name: "read_file", Input: `{"path":"a.go"}`})
	m.AddPart(ContentText{Text: "read the file now."})

	assert.Equal(t, "I will read the file now.", m.Text())
}

func TestMessageToolNamesDedupAndOrder(t *testing.T) {
	m := New("msg-2", "sess-1", KindAssistant)
	m.AddPart(ToolUse{ID: "tu-1", Name: "read_file"})
	m.AddPart(ContentText{Text: "now tool:write_file(path=a.go) and also tool:read_file(path=a.go)"})
	m.AddPart(ToolUse{ID: "tu-2", Name: "bash"})

	assert.Equal(t, []string{"read_file", "write_file", "bash"}, m.ToolNames())
}

func TestMessageToolNamesEmptyWhenNoToolContent(t *testing.T) {
	m := New("msg-3", "sess-1", KindUser)
	m.AddPart(ContentText{Text: "please continue"})
	assert.Empty(t, m.ToolNames())
}

func TestMessageToolNamesFromTextualMarkerOnly(t *testing.T) {
	m := New("msg-4", "sess-1", KindAssistant)
	m.AddPart(ContentText{Text: "invoking tool:search_files(query=foo) next"})
	assert.Equal(t, []string{"search_files"}, m.ToolNames())
}

func TestMessageIsTerminal(t *testing.T) {
	assert.False(t, New("m", "s", KindAssistant).IsTerminal())
	assert.False(t, New("m", "s", KindToolResult).IsTerminal())
	assert.True(t, New("m", "s", KindResult).IsTerminal())
}

func TestMessageToolResultsAndUsesPreserveOrder(t *testing.T) {
	m := New("msg-5", "sess-1", KindToolResult)
	m.AddPart(ToolUse{ID: "tu-1", Name: "a"})
	m.AddPart(ToolResult{ToolUseID: "tu-1", Content: "ok"})
	m.AddPart(ToolUse{ID: "tu-2", Name: "b"})
	m.AddPart(ToolResult{ToolUseID: "tu-2", Content: "fail", IsError: true})

	uses := m.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].Name)
	assert.Equal(t, "b", uses[1].Name)

	results := m.ToolResults()
	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
}

func TestMessageTimestampZeroMeansAbsent(t *testing.T) {
	m := New("msg-6", "sess-1", KindSystem)
	assert.True(t, m.Timestamp.IsZero())

	m.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, m.Timestamp.IsZero())
}
