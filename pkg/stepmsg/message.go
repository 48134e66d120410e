// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stepmsg defines the Message the step pipeline consumes: a single
// record from the assistant process's line-delimited transport, already
// parsed. The pipeline treats content and transport framing as opaque except
// for the tool names it can extract from a message.
package stepmsg

import (
	"regexp"
	"time"
)

// Kind identifies who or what produced a Message.
type Kind string

const (
	KindSystem     Kind = "system"
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindToolResult Kind = "tool_result"
	KindResult     Kind = "result"
)

// Message is a single entry in the assistant process's transcript.
type Message struct {
	ID        string
	SessionID string
	Kind      Kind
	Timestamp time.Time // zero value means the timestamp is absent

	parts []ContentPart
}

// New creates a Message with no content parts.
func New(id, sessionID string, kind Kind) Message {
	return Message{ID: id, SessionID: sessionID, Kind: kind}
}

// AddPart appends a content part to the message.
func (m *Message) AddPart(part ContentPart) {
	m.parts = append(m.parts, part)
}

// Parts returns the message's content parts in arrival order.
func (m Message) Parts() []ContentPart {
	return m.parts
}

// Text concatenates all ContentText parts, in order.
func (m Message) Text() string {
	var text string
	for _, p := range m.parts {
		if t, ok := p.(ContentText); ok {
			text += t.Text
		}
	}
	return text
}

// ToolUses returns the structured tool-use parts of the message, in order.
func (m Message) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, p := range m.parts {
		if tu, ok := p.(ToolUse); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// ToolResults returns the structured tool-result parts of the message, in order.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range m.parts {
		if tr, ok := p.(ToolResult); ok {
			results = append(results, tr)
		}
	}
	return results
}

// toolMarkerPattern recognizes textual tool-invocation markers embedded in
// assistant content, e.g. "tool:read_file(path=config.json)", for transports
// that inline tool use as text rather than as a structured content entry.
var toolMarkerPattern = regexp.MustCompile(`(?i)\btool:([a-zA-Z_][a-zA-Z0-9_]*)\(`)

// ToolNames returns the de-duplicated set of tool names this message
// mentions — the union of structured ToolUse parts and textual markers found
// in its ContentText parts — in order of first appearance across the parts.
func (m Message) ToolNames() []string {
	seen := make(map[string]struct{})
	var names []string

	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, p := range m.parts {
		switch v := p.(type) {
		case ToolUse:
			add(v.Name)
		case ContentText:
			for _, match := range toolMarkerPattern.FindAllStringSubmatch(v.Text, -1) {
				add(match[1])
			}
		}
	}

	return names
}

// IsTerminal reports whether this message kind ends a conversation turn
// (result messages carry the assistant process's final run status).
func (m Message) IsTerminal() bool {
	return m.Kind == KindResult
}

// ContentPart is a marker interface implemented by every content part kind.
type ContentPart interface {
	isContentPart()
}

// ContentText is plain textual content.
type ContentText struct {
	Text string
}

func (ContentText) isContentPart() {}

// ToolUse is a structured tool invocation.
type ToolUse struct {
	ID    string
	Name  string
	Input string // raw input, typically JSON
}

func (ToolUse) isContentPart() {}

// ToolResult is a structured tool execution result.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResult) isContentPart() {}
