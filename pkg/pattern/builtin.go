// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pattern

import (
	"regexp"

	"github.com/agentstep/pipeline/pkg/step"
)

// Built-in pattern IDs, the default vocabulary's identifiers.
const (
	IDFileOperation    = "file_operation"
	IDCodeModification = "code_modification"
	IDSystemCommand    = "system_command"
	IDExploration      = "exploration"
	IDAnalysis         = "analysis"
	IDCommunication    = "communication"
)

// Builtin returns the default pattern vocabulary, in priority-descending
// order. Callers that install a custom pattern set typically start from
// this list and append or override entries by ID.
func Builtin() []Pattern {
	return []Pattern{
		{
			ID:       IDFileOperation,
			Name:     "File Operation",
			Type:     step.TypeFileOperation,
			Priority: 90,
			Confidence: 0.95,
			Triggers: []Trigger{
				ToolUsageTrigger([]string{"read_file", "write_file", "append_file", "list_files", "delete_file"}),
			},
		},
		{
			ID:       IDCodeModification,
			Name:     "Code Modification",
			Type:     step.TypeCodeModification,
			Priority: 85,
			Confidence: 0.90,
			Triggers: []Trigger{
				ToolUsageTrigger([]string{"string_replace", "write_file"}),
				MessageContentTrigger(regexp.MustCompile(`(?i)implement|refactor|fix|update.*code`)),
			},
		},
		{
			ID:       IDSystemCommand,
			Name:     "System Command",
			Type:     step.TypeSystemCommand,
			Priority: 80,
			Confidence: 0.90,
			Triggers: []Trigger{
				ToolUsageTrigger([]string{"shell_execute", "bash"}),
				MessageContentTrigger(regexp.MustCompile(`(?i)run|execute|command|shell|bash`)),
			},
		},
		{
			ID:       IDExploration,
			Name:     "Exploration",
			Type:     step.TypeExploration,
			Priority: 70,
			Confidence: 0.80,
			Triggers: []Trigger{
				ToolUsageTrigger([]string{"grep", "file_search", "list_directory"}),
				MessageContentTrigger(regexp.MustCompile(`(?i)search|find|explore|browse|discover`)),
			},
		},
		{
			ID:       IDAnalysis,
			Name:     "Analysis",
			Type:     step.TypeAnalysis,
			Priority: 60,
			Confidence: 0.75,
			Triggers: []Trigger{
				ToolUsageTrigger([]string{"read_file", "read_many_files"}),
				MessageContentTrigger(regexp.MustCompile(`(?i)analyze|review|understand|examine|inspect`)),
			},
		},
		{
			ID:       IDCommunication,
			Name:     "Communication",
			Type:     step.TypeCommunication,
			Priority: 30,
			Confidence: 0.60,
			Triggers: []Trigger{
				MessageContentTrigger(regexp.MustCompile(`(?i)explain|describe|tell|show|help`)),
			},
		},
	}
}
