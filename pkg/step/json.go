// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package step

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// wireStep is Step's durable JSON shape, exposing the unexported message and
// tool-use fields that History's persistence adapters must round-trip.
type wireStep struct {
	ID           string              `json:"id"`
	Type         Type                `json:"type"`
	Description  string              `json:"description"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  time.Time           `json:"completed_at,omitempty"`
	Status       Status              `json:"status"`
	ReviewStatus ReviewStatus        `json:"review_status,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
	Interventions []Intervention     `json:"interventions,omitempty"`
	Messages     []stepmsg.Message   `json:"messages,omitempty"`
	ToolsUsed    []string            `json:"tools_used,omitempty"`
}

// MarshalJSON encodes s including its accumulated messages and tool names.
func (s *Step) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(wireStep{
		ID:            s.ID,
		Type:          s.Type,
		Description:   s.Description,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		Status:        s.Status,
		ReviewStatus:  s.ReviewStatus,
		Metadata:      s.Metadata,
		Interventions: s.Interventions,
		Messages:      s.messages,
		ToolsUsed:     s.toolsUsed,
	})
}

// UnmarshalJSON decodes s, restoring its messages and tool-use index.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w wireStep
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("step: decode: %w", err)
	}
	s.ID = w.ID
	s.Type = w.Type
	s.Description = w.Description
	s.StartedAt = w.StartedAt
	s.CompletedAt = w.CompletedAt
	s.Status = w.Status
	s.ReviewStatus = w.ReviewStatus
	s.Metadata = w.Metadata
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Interventions = w.Interventions
	s.messages = w.Messages
	s.toolsUsed = w.ToolsUsed
	s.toolSeen = make(map[string]struct{}, len(w.ToolsUsed))
	for _, name := range w.ToolsUsed {
		s.toolSeen[name] = struct{}{}
	}
	return nil
}
