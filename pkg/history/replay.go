// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package history

import (
	"context"

	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

// Summary is the projected, lightweight form of a Step a Replay may yield
// instead of the full Step.
type Summary struct {
	ID          string
	Type        step.Type
	Description string
	StartedAt   int64
	CompletedAt int64
	Status      step.Status
	ToolsUsed   []string
}

func summarize(s *step.Step) Summary {
	var started, completed int64
	if !s.StartedAt.IsZero() {
		started = s.StartedAt.UnixNano()
	}
	if !s.CompletedAt.IsZero() {
		completed = s.CompletedAt.UnixNano()
	}
	return Summary{
		ID:          s.ID,
		Type:        s.Type,
		Description: s.Description,
		StartedAt:   started,
		CompletedAt: completed,
		Status:      s.Status,
		ToolsUsed:   s.ToolsUsed(),
	}
}

// ReplayOptions bounds a Replay call. The starting anchor is resolved in
// priority order FromCheckpoint, then FromStep, then the beginning of
// history. The ending anchor is ToStep, or the end of history if empty.
type ReplayOptions struct {
	FromCheckpoint string
	FromStep       string
	ToStep         string
	AsSummary      bool
}

// ReplayItem is one element of a Replay stream: exactly one of Step or
// Summary is set, depending on ReplayOptions.AsSummary.
type ReplayItem struct {
	Step    *step.Step
	Summary *Summary
}

// Replay streams Steps (or their Summary projection) between the options'
// anchors, in chronological order. The returned channel is closed once the
// stream is exhausted or ctx is cancelled; the caller must drain it (or
// cancel ctx) to avoid leaking the feeding goroutine.
func (h *History) Replay(ctx context.Context, opts ReplayOptions) (<-chan ReplayItem, error) {
	r, err := h.call(ctx, request{kind: opSnapshotForReplay})
	if err != nil {
		return nil, err
	}

	start := 0
	if opts.FromCheckpoint != "" {
		cp, ok := findCheckpoint(r.checkpoints, opts.FromCheckpoint)
		if !ok {
			return nil, perr.NewProtocolError("history: no checkpoint %q", opts.FromCheckpoint)
		}
		idx, ok := firstIndexOfAny(r.steps, cp.StepIDs)
		if ok {
			start = idx
		}
	} else if opts.FromStep != "" {
		idx, ok := indexOfStep(r.steps, opts.FromStep)
		if !ok {
			return nil, perr.NewProtocolError("history: no step %q", opts.FromStep)
		}
		start = idx
	}

	end := len(r.steps)
	if opts.ToStep != "" {
		idx, ok := indexOfStep(r.steps, opts.ToStep)
		if !ok {
			return nil, perr.NewProtocolError("history: no step %q", opts.ToStep)
		}
		end = idx + 1
	}
	if start > end {
		start = end
	}

	window := r.steps[start:end]
	out := make(chan ReplayItem)
	go func() {
		defer close(out)
		for _, s := range window {
			item := ReplayItem{}
			if opts.AsSummary {
				sm := summarize(s)
				item.Summary = &sm
			} else {
				item.Step = s
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func findCheckpoint(checkpoints []step.Checkpoint, id string) (step.Checkpoint, bool) {
	for _, c := range checkpoints {
		if c.ID == id {
			return c, true
		}
	}
	return step.Checkpoint{}, false
}

func indexOfStep(steps []*step.Step, id string) (int, bool) {
	for i, s := range steps {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// firstIndexOfAny returns the smallest index in steps whose ID appears in
// ids, used to anchor a replay at the earliest Step a checkpoint snapshot
// references.
func firstIndexOfAny(steps []*step.Step, ids []string) (int, bool) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i, s := range steps {
		if _, ok := want[s.ID]; ok {
			return i, true
		}
	}
	return 0, false
}
