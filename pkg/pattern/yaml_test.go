// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatternYAML = `
patterns:
  - id: custom_review
    name: Custom Review
    type: analysis
    priority: 65
    confidence: 0.8
    triggers:
      content_regex:
        - "(?i)please review"
      tool_usage:
        - read_file
    validators:
      tool_count:
        min: 1
`

func TestLoadBytesParsesPatternSet(t *testing.T) {
	patterns, err := LoadBytes([]byte(samplePatternYAML))
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, "custom_review", p.ID)
	assert.Equal(t, 65, p.Priority)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.Len(t, p.Triggers, 2)
	assert.Len(t, p.Validators, 1)
}

func TestLoadBytesInvalidYAMLErrors(t *testing.T) {
	_, err := LoadBytes([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestLoadBytesInvalidRegexErrors(t *testing.T) {
	bad := `
patterns:
  - id: bad
    priority: 10
    confidence: 0.5
    triggers:
      content_regex:
        - "(unterminated"
`
	_, err := LoadBytes([]byte(bad))
	assert.Error(t, err)
}

func TestLibraryReloadReplacesPatterns(t *testing.T) {
	lib := NewDefaultLibrary()
	patterns, err := LoadBytes([]byte(samplePatternYAML))
	require.NoError(t, err)

	require.NoError(t, lib.Reload(patterns))
	got := lib.Patterns()
	require.Len(t, got, 1)
	assert.Equal(t, "custom_review", got[0].ID)
}
