// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package control

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agentstep/pipeline/pkg/step"
)

// ReviewResultKind is the outcome of a review_required Step's review.
type ReviewResultKind string

const (
	ReviewApproved             ReviewResultKind = "approved"
	ReviewRejected             ReviewResultKind = "rejected"
	ReviewApprovedWithChanges  ReviewResultKind = "approved_with_changes"
	ReviewError                ReviewResultKind = "error"
)

// ReviewChanges is the bounded edit set a review may apply when approving
// a Step with changes.
type ReviewChanges struct {
	Description   *string
	Metadata      map[string]any
	Interventions []step.Intervention
}

// ReviewResult is what a ReviewHandler returns for a submitted Step.
type ReviewResult struct {
	Kind    ReviewResultKind
	Changes *ReviewChanges // set only when Kind == ReviewApprovedWithChanges
	Reason  string         // set only when Kind == ReviewError
}

// ReviewHandler decides the fate of a review_required Step. It must be
// side-effect-safe on repeated calls with the same Step id.
type ReviewHandler func(ctx context.Context, s *step.Step) (ReviewResult, error)

// InterventionHandler optionally transforms a Step as an Intervention is
// applied. A returned error fails that intervention's application, which
// may trigger rollback of interventions already applied in the same batch.
// A panic is caught and treated as if the handler left the Step unchanged.
type InterventionHandler func(iv step.Intervention, s *step.Step) error

// reviewOutcomeKind distinguishes a delivered verdict from a run that never
// produced one (timeout or the owner cancelling the review context).
type reviewOutcomeKind int

const (
	reviewDelivered reviewOutcomeKind = iota
	reviewTimedOut
	reviewCancelled
)

type reviewOutcome struct {
	kind   reviewOutcomeKind
	result ReviewResult
	err    error
}

// runReview invokes handler with s, bounded by ctx, and posts exactly one
// reviewOutcome to out. It never blocks past ctx's deadline: a handler that
// overruns control_timeout_ms (or simply ignores ctx) yields reviewTimedOut
// without waiting for the handler goroutine to return. The handler still
// runs to completion in the background under errgroup; its late result or
// error is discarded, and the Controller treats the timeout as the
// authoritative outcome.
func runReview(ctx context.Context, handler ReviewHandler, s *step.Step, out chan<- reviewOutcome) {
	g, gctx := errgroup.WithContext(ctx)
	resultCh := make(chan ReviewResult, 1)
	errCh := make(chan error, 1)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("review handler panicked: %v", r)
				errCh <- err
			}
		}()
		res, herr := handler(gctx, s)
		if herr != nil {
			errCh <- herr
			return herr
		}
		resultCh <- res
		return nil
	})

	go func() {
		select {
		case res := <-resultCh:
			out <- reviewOutcome{kind: reviewDelivered, result: res}
		case herr := <-errCh:
			out <- reviewOutcome{kind: reviewDelivered, result: ReviewResult{Kind: ReviewError, Reason: herr.Error()}, err: herr}
		case <-ctx.Done():
			out <- reviewOutcome{kind: reviewTimedOut, err: ctx.Err()}
		}
	}()

	// Reap the worker; its result has already been delivered (or superseded
	// by a timeout) above, so the error from Wait is dropped.
	go func() { _ = g.Wait() }()
}
