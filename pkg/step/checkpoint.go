// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package step

import "time"

// Checkpoint is a named, point-in-time snapshot of the step history: the
// set of Step IDs present in History at creation time, in order. History
// preserves any Step referenced by a Checkpoint's snapshot across pruning
// unless pruning is explicitly configured to ignore checkpoints.
type Checkpoint struct {
	ID        string
	Label     string
	CreatedAt time.Time
	StepCount int
	StepIDs   []string
}

// NewCheckpoint builds a Checkpoint snapshotting the given step IDs.
func NewCheckpoint(label string, createdAt time.Time, stepIDs []string) Checkpoint {
	ids := make([]string, len(stepIDs))
	copy(ids, stepIDs)
	return Checkpoint{
		ID:        NewID(),
		Label:     label,
		CreatedAt: createdAt,
		StepCount: len(ids),
		StepIDs:   ids,
	}
}

// Contains reports whether stepID is part of this checkpoint's snapshot.
func (c Checkpoint) Contains(stepID string) bool {
	for _, id := range c.StepIDs {
		if id == stepID {
			return true
		}
	}
	return false
}
