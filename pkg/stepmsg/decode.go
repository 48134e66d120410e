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

// wireMessage is the line-delimited JSON shape emitted by the assistant
// process. The pipeline itself treats transport framing as opaque;
// DecodeLine exists only so an embedding program has a ready-made decoder to
// feed the pipeline from a file or stdin without hand-rolling JSON parsing.
type wireMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	ID        string          `json:"id"`
	Timestamp *time.Time      `json:"timestamp"`
	Content   json.RawMessage `json:"content"`
}

type wireContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Input     string `json:"input"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// DecodeLine parses one line of the assistant process's JSONL transport into
// a Message. content may be a plain JSON string or an array of typed content
// blocks ({"type":"text"|"tool_use"|"tool_result", ...}).
func DecodeLine(line []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(line, &wire); err != nil {
		return Message{}, fmt.Errorf("stepmsg: decode line: %w", err)
	}

	kind, err := parseKind(wire.Type)
	if err != nil {
		return Message{}, err
	}

	msg := New(wire.ID, wire.SessionID, kind)
	if wire.Timestamp != nil {
		msg.Timestamp = *wire.Timestamp
	}

	if len(wire.Content) == 0 {
		return msg, nil
	}

	var asText string
	if err := json.Unmarshal(wire.Content, &asText); err == nil {
		msg.AddPart(ContentText{Text: asText})
		return msg, nil
	}

	var blocks []wireContentBlock
	if err := json.Unmarshal(wire.Content, &blocks); err != nil {
		return Message{}, fmt.Errorf("stepmsg: decode content: %w", err)
	}
	for _, b := range blocks {
		switch b.Type {
		case "text", "":
			msg.AddPart(ContentText{Text: b.Text})
		case "tool_use":
			msg.AddPart(ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
		case "tool_result":
			msg.AddPart(ToolResult{ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError})
		}
	}

	return msg, nil
}

func parseKind(wireType string) (Kind, error) {
	switch Kind(wireType) {
	case KindSystem, KindUser, KindAssistant, KindToolResult, KindResult:
		return Kind(wireType), nil
	default:
		return "", fmt.Errorf("stepmsg: unknown message type %q", wireType)
	}
}
