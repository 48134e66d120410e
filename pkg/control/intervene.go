// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package control

import (
	"sort"
	"time"

	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

func validInterventionType(t step.InterventionType) bool {
	switch t {
	case step.InterventionGuidance, step.InterventionCorrection, step.InterventionContext:
		return true
	default:
		return false
	}
}

// applied tracks one intervention's effect on s.Metadata for rollback.
type applied struct {
	iv         step.Intervention
	addedKeys  []string
}

// applyInterventions applies ivs to s in priority order (critical first),
// sequentially. If any intervention carries an unknown type, the whole
// batch is rejected before anything is touched. If an InterventionHandler
// returns a hard error partway through, interventions already applied in
// this batch are rolled back in reverse order: their handler-added metadata
// keys are removed and their status is set to rolled back. A handler panic
// is treated as leaving the Step unchanged for that one intervention, not
// as a batch failure.
func applyInterventions(s *step.Step, ivs []step.Intervention, handler InterventionHandler, now time.Time) error {
	if len(ivs) == 0 {
		return nil
	}
	for _, iv := range ivs {
		if !validInterventionType(iv.Type) {
			return perr.NewProtocolError("unknown intervention type %q", iv.Type)
		}
	}

	ordered := make([]step.Intervention, len(ivs))
	copy(ordered, ivs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority.Less(ordered[j].Priority)
	})

	var done []applied
	for _, iv := range ordered {
		before := make(map[string]struct{}, len(s.Metadata))
		for k := range s.Metadata {
			before[k] = struct{}{}
		}

		if handler != nil {
			if err := callInterventionHandler(handler, iv, s); err != nil {
				rollback(s, done)
				return perr.NewHandlerError(err, "intervention handler failed for %s", iv.ID)
			}
		}

		var added []string
		for k := range s.Metadata {
			if _, existed := before[k]; !existed {
				added = append(added, k)
			}
		}

		iv.Status = step.InterventionAppliedStatus
		iv.AppliedAt = now
		s.AddIntervention(iv)
		done = append(done, applied{iv: iv, addedKeys: added})
	}
	return nil
}

// callInterventionHandler invokes handler, converting a panic into "left
// the Step unchanged" rather than a batch-failing error.
func callInterventionHandler(handler InterventionHandler, iv step.Intervention, s *step.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nil
		}
	}()
	return handler(iv, s)
}

func rollback(s *step.Step, done []applied) {
	for i := len(done) - 1; i >= 0; i-- {
		a := done[i]
		for _, k := range a.addedKeys {
			delete(s.Metadata, k)
		}
		markRolledBack(s, a.iv.ID)
	}
}

func markRolledBack(s *step.Step, id string) {
	for i := range s.Interventions {
		if s.Interventions[i].ID == id {
			s.Interventions[i].Status = step.InterventionRolledBackStatus
			return
		}
	}
}
