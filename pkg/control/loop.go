// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

// ownerLoop is the mutable state owned exclusively by the Controller's Run
// goroutine. Nothing outside that goroutine may touch it.
type ownerLoop struct {
	c *Controller

	state   ownerState
	current *step.Step // live Step awaiting a decision or review verdict
	ready   *step.Step // resolved Step waiting to be delivered as ok()

	// pendingNext holds the reply channel of a NextStep call that found
	// nothing ready and is blocked waiting for an upstream emission. Only
	// one such call can be outstanding at a time.
	pendingNext chan reply

	reviewCancel context.CancelFunc

	emissions      int
	errorsCount    int
	reviewTimeouts int
	startTime      time.Time

	stopped bool
}

func newOwnerLoop(c *Controller) *ownerLoop {
	return &ownerLoop{
		c:         c,
		state:     stateRunning,
		startTime: c.cfg.Clock(),
	}
}

func (l *ownerLoop) run() {
	for {
		var stepsIn <-chan *step.Step
		if l.pendingNext != nil {
			stepsIn = l.c.cfg.StepsIn
		}

		select {
		case req := <-l.c.ops:
			l.handleOp(req)
		case outcome := <-l.c.reviewResult:
			l.handleReviewOutcome(outcome)
		case s, ok := <-stepsIn:
			l.handleUpstream(s, ok)
		}

		if l.stopped {
			return
		}
	}
}

func (l *ownerLoop) handleOp(req request) {
	switch req.kind {
	case opNextStep:
		pull, err, blocked := l.nextStep()
		if blocked {
			l.pendingNext = req.reply
			return
		}
		req.reply <- reply{pull: pull, err: err}

	case opResume:
		pull, err := l.resume(req.decision)
		req.reply <- reply{pull: pull, err: err}

	case opStatus:
		req.reply <- reply{status: l.status()}

	case opStop:
		l.stop()
		l.deliverPending(Pull{}, perr.NewProtocolError("controller is aborted"))
		req.reply <- reply{}
		l.stopped = true
	}
}

// nextStep returns the result of a pull, or blocked=true if nothing is
// ready and a new Step must be awaited from upstream.
func (l *ownerLoop) nextStep() (Pull, error, bool) {
	switch l.state {
	case stateAborted:
		return Pull{}, perr.NewProtocolError("controller is aborted"), false
	case stateCompleted:
		return Pull{Kind: PullCompleted}, nil, false
	case stateWaitingDecision:
		return Pull{Kind: PullPaused, Step: l.current}, nil, false
	case stateWaitingReview:
		return Pull{Kind: PullWaitingReview, Step: l.current}, nil, false
	}

	// stateRunning.
	if l.ready != nil {
		s := l.ready
		l.ready = nil
		return Pull{Kind: PullOK, Step: s}, nil, false
	}
	return Pull{}, nil, true
}

// handleUpstream resolves a pull that was blocked waiting on StepsIn.
func (l *ownerLoop) handleUpstream(s *step.Step, ok bool) {
	if !ok {
		l.state = stateCompleted
		l.deliverPending(Pull{Kind: PullCompleted}, nil)
		return
	}
	pull, err := l.admit(s)
	l.deliverPending(pull, err)
}

func (l *ownerLoop) deliverPending(pull Pull, err error) {
	if l.pendingNext == nil {
		return
	}
	ch := l.pendingNext
	l.pendingNext = nil
	ch <- reply{pull: pull, err: err}
}

// admit applies Mode to a freshly pulled Step.
func (l *ownerLoop) admit(s *step.Step) (Pull, error) {
	switch l.c.cfg.Mode {
	case ModeManual:
		l.current = s
		l.state = stateWaitingDecision
		return Pull{Kind: PullPaused, Step: s}, nil

	case ModeReviewRequired:
		l.current = s
		l.state = stateWaitingReview
		l.startReview(s)
		return Pull{Kind: PullWaitingReview, Step: s}, nil

	default: // ModeAutomatic
		if l.c.cfg.PauseBetweenSteps {
			l.current = s
			l.state = stateWaitingDecision
			return Pull{Kind: PullPaused, Step: s}, nil
		}
		l.emissions++
		return Pull{Kind: PullOK, Step: s}, nil
	}
}

func (l *ownerLoop) resume(d Decision) (Pull, error) {
	switch l.state {
	case stateAborted:
		return Pull{}, perr.NewProtocolError("controller is aborted")
	case stateCompleted:
		return Pull{Kind: PullCompleted}, nil

	case stateWaitingReview:
		if d.Kind == DecisionAbort {
			l.abort()
			return Pull{}, nil
		}
		return Pull{}, perr.NewProtocolError("cannot resume: controller is waiting on review")

	case stateRunning:
		if d.Kind == DecisionAbort {
			l.abort()
			return Pull{}, nil
		}
		return Pull{}, perr.NewProtocolError("resume called without a pending step")

	case stateWaitingDecision:
		return l.resumeWaitingDecision(d)
	}
	return Pull{}, perr.NewProtocolError("controller is in an unrecognized state")
}

func (l *ownerLoop) resumeWaitingDecision(d Decision) (Pull, error) {
	now := l.c.cfg.Clock()
	switch d.Kind {
	case DecisionPause:
		return Pull{Kind: PullPaused, Step: l.current}, nil

	case DecisionContinue:
		l.current.SetStatus(step.StatusCompleted, now)
		l.settle()
		return Pull{}, nil

	case DecisionSkip:
		l.current.SetStatus(step.StatusAborted, now)
		l.settle()
		return Pull{}, nil

	case DecisionAbort:
		l.abort()
		return Pull{}, nil

	case DecisionIntervene:
		if err := applyInterventions(l.current, []step.Intervention{d.Intervention}, l.c.cfg.InterventionHandler, now); err != nil {
			l.errorsCount++
			return Pull{}, err
		}
		l.current.SetStatus(step.StatusCompleted, now)
		l.settle()
		return Pull{}, nil

	default:
		return Pull{}, perr.NewProtocolError("unknown decision %q", d.Kind)
	}
}

// settle moves the now-resolved current Step into ready and returns the
// Controller to running.
func (l *ownerLoop) settle() {
	l.ready = l.current
	l.current = nil
	l.state = stateRunning
	l.emissions++
}

func (l *ownerLoop) abort() {
	if l.current != nil {
		l.current.SetStatus(step.StatusAborted, l.c.cfg.Clock())
		l.current = nil
	}
	if l.reviewCancel != nil {
		l.reviewCancel()
		l.reviewCancel = nil
	}
	l.state = stateAborted
}

func (l *ownerLoop) stop() {
	if l.state == stateWaitingReview && l.current != nil {
		l.current.SetReviewStatus(step.ReviewRejected)
	}
	l.abort()
}

func (l *ownerLoop) startReview(s *step.Step) {
	ctx, cancel := context.WithTimeout(context.Background(), l.c.cfg.ControlTimeout)
	l.reviewCancel = cancel
	_, span := l.c.tracer.StartSpan(ctx, "control.review")
	span.SetAttribute(observability.AttrStepID, s.ID)
	go func() {
		defer l.c.tracer.EndSpan(span)
		runReview(ctx, l.c.cfg.ReviewHandler, s, l.c.reviewResult)
	}()
}

func (l *ownerLoop) handleReviewOutcome(outcome reviewOutcome) {
	if l.state != stateWaitingReview || l.current == nil {
		return // stale outcome from a review already superseded by abort/stop
	}
	if l.reviewCancel != nil {
		l.reviewCancel()
		l.reviewCancel = nil
	}
	now := l.c.cfg.Clock()

	switch outcome.kind {
	case reviewTimedOut, reviewCancelled:
		l.reviewTimeouts++
		l.errorsCount++
		l.current.SetReviewStatus(step.ReviewRejected)
		l.current.SetStatus(step.StatusAborted, now)
		l.settle()
		return
	}

	l.applyReviewResult(outcome.result, now)
}

func (l *ownerLoop) applyReviewResult(res ReviewResult, now time.Time) {
	switch res.Kind {
	case ReviewApproved:
		l.current.SetReviewStatus(step.ReviewApproved)
		l.current.SetStatus(step.StatusCompleted, now)
		l.settle()

	case ReviewApprovedWithChanges:
		l.applyReviewChanges(res.Changes, now)
		l.current.SetReviewStatus(step.ReviewApproved)
		l.current.SetStatus(step.StatusCompleted, now)
		l.settle()

	case ReviewRejected, ReviewError:
		if res.Kind == ReviewError {
			l.errorsCount++
			l.c.logger.Warn("review handler returned an error", zap.String("reason", res.Reason))
		}
		l.current.SetReviewStatus(step.ReviewRejected)
		l.current.SetStatus(step.StatusAborted, now)
		l.settle()

	default:
		l.errorsCount++
		l.current.SetReviewStatus(step.ReviewRejected)
		l.current.SetStatus(step.StatusAborted, now)
		l.settle()
	}
}

func (l *ownerLoop) applyReviewChanges(changes *ReviewChanges, now time.Time) {
	if changes == nil {
		return
	}
	if changes.Description != nil {
		l.current.Description = *changes.Description
	}
	if changes.Metadata != nil {
		l.current.MergeMetadata(changes.Metadata)
	}
	if len(changes.Interventions) > 0 {
		if err := applyInterventions(l.current, changes.Interventions, l.c.cfg.InterventionHandler, now); err != nil {
			l.errorsCount++
			l.c.logger.Warn("review-supplied interventions failed to apply", zap.Error(err))
		}
	}
}

func (l *ownerLoop) status() Status {
	return Status{
		Mode:           l.c.cfg.Mode,
		State:          stateName(l.state),
		Emissions:      l.emissions,
		Errors:         l.errorsCount,
		ReviewTimeouts: l.reviewTimeouts,
		Uptime:         l.c.cfg.Clock().Sub(l.startTime),
	}
}

func stateName(s ownerState) string {
	switch s {
	case stateRunning:
		return "running"
	case stateWaitingDecision:
		return "waiting_decision"
	case stateWaitingReview:
		return "waiting_review"
	case stateCompleted:
		return "completed"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
