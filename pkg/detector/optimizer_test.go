// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstep/pipeline/pkg/pattern"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

func TestOptimizerHitAfterPut(t *testing.T) {
	o := NewOptimizer(2)
	ctx := pattern.Context{Message: stepmsg.New("m", "s", stepmsg.KindAssistant), ContentText: "hi"}

	_, ok := o.Get(ctx)
	assert.False(t, ok)

	o.Put(ctx, Decision{Kind: DecisionStepContinue})
	got, ok := o.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, DecisionStepContinue, got.Kind)

	hits, misses := o.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestOptimizerEvictsLeastRecentlyUsed(t *testing.T) {
	o := NewOptimizer(2)
	ctxA := pattern.Context{Message: stepmsg.New("m", "s", stepmsg.KindAssistant), ContentText: "a"}
	ctxB := pattern.Context{Message: stepmsg.New("m", "s", stepmsg.KindAssistant), ContentText: "b"}
	ctxC := pattern.Context{Message: stepmsg.New("m", "s", stepmsg.KindAssistant), ContentText: "c"}

	o.Put(ctxA, Decision{Kind: DecisionStepContinue})
	o.Put(ctxB, Decision{Kind: DecisionStepContinue})
	o.Get(ctxA) // touch A so B becomes the LRU entry
	o.Put(ctxC, Decision{Kind: DecisionStepContinue})

	_, okA := o.Get(ctxA)
	_, okB := o.Get(ctxB)
	_, okC := o.Get(ctxC)

	assert.True(t, okA)
	assert.False(t, okB, "B was least recently used and should have been evicted")
	assert.True(t, okC)
}
