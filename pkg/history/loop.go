// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentstep/pipeline/internal/csync"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

// ownerLoop is the mutable state owned exclusively by the History's Run
// goroutine. Nothing outside that goroutine may touch it. steps is kept in
// a csync.Slice rather than a bare []*step.Step: GetHistory and
// opSnapshotForReplay read it through the same request/reply path every
// other operation uses, but the Slice means a snapshot read never races a
// concurrent Set even if that invariant ever changes.
type ownerLoop struct {
	h *History

	steps       *csync.Slice[*step.Step]
	checkpoints []step.Checkpoint
	sinceCheck  int

	saves              int
	prunes             int
	checkpointsCreated int
	restores           int
	errorsCount        int
	startTime          time.Time
}

func newOwnerLoop(h *History) *ownerLoop {
	steps := csync.NewSlice[*step.Step]()
	steps.Set(h.initial.StepHistory)
	return &ownerLoop{
		h:           h,
		steps:       steps,
		checkpoints: append([]step.Checkpoint(nil), h.initial.Checkpoints...),
		sinceCheck:  h.initial.StepCountSinceCheckpoint,
		startTime:   h.cfg.Clock(),
	}
}

func (l *ownerLoop) handle(req request) {
	switch req.kind {
	case opSaveStep:
		err := l.saveStep(req.ctx, req.step)
		req.reply <- response{err: err}

	case opCreateCheckpoint:
		cp, err := l.createCheckpoint(req.ctx, req.label)
		req.reply <- response{checkpoint: cp, err: err}

	case opRestoreCheckpoint:
		err := l.restoreCheckpoint(req.ctx, req.checkID)
		req.reply <- response{err: err}

	case opGetHistory:
		req.reply <- response{steps: l.steps.Items()}

	case opGetCheckpoints:
		req.reply <- response{checkpoints: append([]step.Checkpoint(nil), l.checkpoints...)}

	case opPrune:
		n, err := l.prune(req.opts)
		req.reply <- response{pruned: n, err: err}

	case opClear:
		err := l.clear(req.ctx)
		req.reply <- response{err: err}

	case opStatus:
		req.reply <- response{status: l.status()}

	case opSnapshotForReplay:
		req.reply <- response{steps: l.steps.Items(), checkpoints: append([]step.Checkpoint(nil), l.checkpoints...)}
	}
}

func (l *ownerLoop) saveStep(ctx context.Context, s *step.Step) error {
	l.steps.Append(s)
	l.sortSteps()
	l.sinceCheck++
	l.saves++

	if l.h.cfg.AutoCheckpointInterval > 0 && l.sinceCheck >= l.h.cfg.AutoCheckpointInterval {
		label := fmt.Sprintf("auto-%d", l.h.cfg.Clock().Unix())
		l.checkpoints = append(l.checkpoints, step.NewCheckpoint(label, l.h.cfg.Clock(), stepIDs(l.steps.Items())))
		l.checkpointsCreated++
		l.sinceCheck = 0
	}

	_, _ = l.prune(PruneOptions{})

	if err := l.persist(ctx); err != nil {
		l.errorsCount++
		return err
	}
	return nil
}

func (l *ownerLoop) createCheckpoint(ctx context.Context, label string) (step.Checkpoint, error) {
	cp := step.NewCheckpoint(label, l.h.cfg.Clock(), stepIDs(l.steps.Items()))
	l.checkpoints = append(l.checkpoints, cp)
	l.checkpointsCreated++
	l.sinceCheck = 0

	if err := l.persist(ctx); err != nil {
		l.errorsCount++
		return step.Checkpoint{}, err
	}
	return cp, nil
}

func (l *ownerLoop) restoreCheckpoint(ctx context.Context, id string) error {
	var cp step.Checkpoint
	found := false
	for _, c := range l.checkpoints {
		if c.ID == id {
			cp, found = c, true
			break
		}
	}
	if !found {
		return perr.NewProtocolError("history: no checkpoint %q", id)
	}

	current := l.steps.Items()
	byID := make(map[string]*step.Step, len(current))
	for _, s := range current {
		byID[s.ID] = s
	}
	restored := make([]*step.Step, 0, len(cp.StepIDs))
	for _, id := range cp.StepIDs {
		if s, ok := byID[id]; ok {
			restored = append(restored, s)
		}
	}
	sortSteps(restored)

	l.steps.Set(restored)
	l.sinceCheck = 0
	l.restores++

	if err := l.persist(ctx); err != nil {
		l.errorsCount++
		return err
	}
	return nil
}

func (l *ownerLoop) prune(opts PruneOptions) (int, error) {
	maxSize := opts.MaxStepHistory
	if maxSize <= 0 {
		maxSize = l.h.cfg.MaxStepHistory
	}
	preserve := l.h.cfg.PreserveCheckpoints
	if opts.PreserveCheckpoints != nil {
		preserve = *opts.PreserveCheckpoints
	}

	kept, removed := pruneSteps(l.steps.Items(), l.checkpoints, maxSize, preserve)
	l.steps.Set(kept)
	if removed > 0 {
		l.prunes += removed
	}
	return removed, nil
}

func (l *ownerLoop) clear(ctx context.Context) error {
	l.steps.Clear()
	l.checkpoints = nil
	l.sinceCheck = 0

	if err := l.persist(ctx); err != nil {
		l.errorsCount++
		return err
	}
	return nil
}

func (l *ownerLoop) persist(ctx context.Context) error {
	if l.h.cfg.Adapter == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	data := ConversationData{
		ConversationID:           l.h.cfg.ConversationID,
		StepHistory:              l.steps.Items(),
		Checkpoints:              l.checkpoints,
		StepCountSinceCheckpoint: l.sinceCheck,
		UpdatedAt:                l.h.cfg.Clock(),
	}
	if err := l.h.cfg.Adapter.SaveConversation(ctx, l.h.cfg.ConversationID, data); err != nil {
		return perr.NewHandlerError(err, "history: save_conversation failed")
	}
	return nil
}

// sortSteps re-sorts the owned step Slice in place by reading a snapshot,
// sorting it, and writing it back.
func (l *ownerLoop) sortSteps() {
	items := l.steps.Items()
	sortSteps(items)
	l.steps.Set(items)
}

func (l *ownerLoop) status() Status {
	return Status{
		ConversationID:           l.h.cfg.ConversationID,
		StepCount:                l.steps.Len(),
		CheckpointCount:          len(l.checkpoints),
		StepCountSinceCheckpoint: l.sinceCheck,
		Saves:                    l.saves,
		Prunes:                   l.prunes,
		CheckpointsCreated:       l.checkpointsCreated,
		Restores:                 l.restores,
		Errors:                   l.errorsCount,
		Uptime:                   l.h.cfg.Clock().Sub(l.startTime),
	}
}

func stepIDs(steps []*step.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

func sortSteps(steps []*step.Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if !steps[i].StartedAt.Equal(steps[j].StartedAt) {
			return steps[i].StartedAt.Before(steps[j].StartedAt)
		}
		return steps[i].ID < steps[j].ID
	})
}

func referencedIDs(checkpoints []step.Checkpoint) map[string]bool {
	refs := make(map[string]bool)
	for _, cp := range checkpoints {
		for _, id := range cp.StepIDs {
			refs[id] = true
		}
	}
	return refs
}

// pruneSteps removes the oldest Steps from a chronologically sorted slice
// until at most maxSize remain, skipping over any Step referenced by a
// Checkpoint when preserveCheckpoints is set — such Steps stay in history
// until no checkpoint references them anymore, so the result may still
// exceed maxSize.
func pruneSteps(steps []*step.Step, checkpoints []step.Checkpoint, maxSize int, preserveCheckpoints bool) ([]*step.Step, int) {
	sortSteps(steps)
	if maxSize <= 0 || len(steps) <= maxSize {
		return steps, 0
	}

	refs := referencedIDs(checkpoints)
	excess := len(steps) - maxSize
	kept := make([]*step.Step, 0, len(steps))
	removed := 0
	for _, s := range steps {
		if excess > 0 && (!preserveCheckpoints || !refs[s.ID]) {
			excess--
			removed++
			continue
		}
		kept = append(kept, s)
	}
	sortSteps(kept)
	return kept, removed
}
