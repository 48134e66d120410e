// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package stepmsg

import (
	"encoding/json"
	"fmt"
	"time"
)

// wirePart is the tagged-union encoding used to round-trip a Message's
// content parts through JSON, for persistence adapters that store Steps (and
// thus their Messages) durably rather than just streaming them.
type wirePart struct {
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     string `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type wireEnvelope struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Parts     []wirePart  `json:"parts,omitempty"`
}

// MarshalJSON encodes m including its content parts.
func (m Message) MarshalJSON() ([]byte, error) {
	env := wireEnvelope{
		ID:        m.ID,
		SessionID: m.SessionID,
		Kind:      m.Kind,
		Timestamp: m.Timestamp,
	}
	for _, p := range m.parts {
		switch v := p.(type) {
		case ContentText:
			env.Parts = append(env.Parts, wirePart{Kind: "text", Text: v.Text})
		case ToolUse:
			env.Parts = append(env.Parts, wirePart{Kind: "tool_use", ID: v.ID, Name: v.Name, Input: v.Input})
		case ToolResult:
			env.Parts = append(env.Parts, wirePart{Kind: "tool_result", ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError})
		default:
			return nil, fmt.Errorf("stepmsg: unknown content part type %T", p)
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes m, restoring its content parts in order.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("stepmsg: decode message: %w", err)
	}
	m.ID = env.ID
	m.SessionID = env.SessionID
	m.Kind = env.Kind
	m.Timestamp = env.Timestamp
	m.parts = nil
	for _, p := range env.Parts {
		switch p.Kind {
		case "text":
			m.parts = append(m.parts, ContentText{Text: p.Text})
		case "tool_use":
			m.parts = append(m.parts, ToolUse{ID: p.ID, Name: p.Name, Input: p.Input})
		case "tool_result":
			m.parts = append(m.parts, ToolResult{ToolUseID: p.ToolUseID, Content: p.Content, IsError: p.IsError})
		default:
			return fmt.Errorf("stepmsg: unknown wire part kind %q", p.Kind)
		}
	}
	return nil
}
