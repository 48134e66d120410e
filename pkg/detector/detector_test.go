// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

func withTool(kind stepmsg.Kind, name string) stepmsg.Message {
	m := stepmsg.New("m", "s", kind)
	m.AddPart(stepmsg.ToolUse{ID: name + "-id", Name: name})
	return m
}

func TestDetectorPatternBasedStartsThenContinues(t *testing.T) {
	d := New(Config{Strategy: StrategyPatternBased})

	dec1 := d.Analyze(withTool(stepmsg.KindAssistant, "read_file"), nil, nil)
	require.Equal(t, DecisionStepStart, dec1.Kind)
	assert.Equal(t, step.TypeFileOperation, dec1.Type)

	dec2 := d.Analyze(withTool(stepmsg.KindAssistant, "read_file"), nil, []string{"read_file"})
	assert.Equal(t, DecisionStepContinue, dec2.Kind)
}

func TestDetectorPatternBasedBoundaryOnTypeChange(t *testing.T) {
	d := New(Config{Strategy: StrategyPatternBased})

	d.Analyze(withTool(stepmsg.KindAssistant, "read_file"), nil, nil)
	dec := d.Analyze(withTool(stepmsg.KindAssistant, "string_replace"), nil, []string{"read_file"})

	assert.Equal(t, DecisionStepBoundary, dec.Kind)
	assert.Equal(t, step.TypeCodeModification, dec.Type)
}

func TestDetectorNoPatternMatchContinues(t *testing.T) {
	d := New(Config{Strategy: StrategyPatternBased})
	m := stepmsg.New("m", "s", stepmsg.KindUser)
	m.AddPart(stepmsg.ContentText{Text: "ok"})

	dec := d.Analyze(m, nil, nil)
	assert.Equal(t, DecisionStepContinue, dec.Kind)
}

func TestDetectorHeuristicCompletionCueEndsStep(t *testing.T) {
	d := New(Config{Strategy: StrategyHeuristic})
	m := stepmsg.New("m", "s", stepmsg.KindAssistant)
	m.AddPart(stepmsg.ContentText{Text: "Done, the task completed successfully"})

	dec := d.Analyze(m, nil, nil)
	assert.Equal(t, DecisionStepEnd, dec.Kind)
}

func TestDetectorHeuristicInfersTypeFromTools(t *testing.T) {
	d := New(Config{Strategy: StrategyHeuristic})
	dec := d.Analyze(withTool(stepmsg.KindAssistant, "write_file"), nil, nil)

	assert.Equal(t, DecisionStepStart, dec.Kind)
	assert.Equal(t, step.TypeFileOperation, dec.Type)
}

func TestDetectorHybridPrefersPatternResultWhenNotContinue(t *testing.T) {
	d := New(Config{Strategy: StrategyHybrid})
	dec := d.Analyze(withTool(stepmsg.KindAssistant, "write_file"), nil, nil)
	assert.Equal(t, DecisionStepStart, dec.Kind)
	assert.Equal(t, step.TypeFileOperation, dec.Type)
}

func TestDetectorHybridFallsBackToHeuristicOnContinue(t *testing.T) {
	d := New(Config{Strategy: StrategyHybrid})
	m := stepmsg.New("m", "s", stepmsg.KindAssistant)
	m.AddPart(stepmsg.ContentText{Text: "all done here, finished successfully"})

	dec := d.Analyze(m, nil, nil)
	assert.Equal(t, DecisionStepEnd, dec.Kind, "no pattern matches plain text, so hybrid falls through to the heuristic's completion cue")
}

func TestDetectorHistoryIsBounded(t *testing.T) {
	d := New(Config{Strategy: StrategyHeuristic})
	for i := 0; i < 15; i++ {
		d.Analyze(withTool(stepmsg.KindAssistant, "write_file"), nil, nil)
	}
	assert.LessOrEqual(t, len(d.History()), 10)
}

func TestDetectorCustomTriggerPanicNeverPropagates(t *testing.T) {
	lib, err := patternLibraryWithPanickingCustom()
	require.NoError(t, err)

	d := New(Config{Strategy: StrategyPatternBased, Library: lib})
	assert.NotPanics(t, func() {
		d.Analyze(stepmsg.New("m", "s", stepmsg.KindUser), nil, nil)
	})
}

func TestInferTypeFromToolsPriorityOrder(t *testing.T) {
	typ, ok := inferTypeFromTools([]string{"read_file", "write_file"})
	require.True(t, ok)
	assert.Equal(t, step.TypeFileOperation, typ, "a write tool outranks a bare read")

	typ, ok = inferTypeFromTools([]string{"read_file"})
	require.True(t, ok)
	assert.Equal(t, step.TypeAnalysis, typ, "read_file alone is analysis")

	_, ok = inferTypeFromTools(nil)
	assert.False(t, ok)
}
