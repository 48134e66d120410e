// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package buffer

import (
	"context"
	"time"

	"github.com/agentstep/pipeline/pkg/detector"
	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// recentWindow bounds the message window handed to the detector as context.
const recentWindow = 20

// loopState is the mutable state owned exclusively by the Buffer's Run
// goroutine. Nothing outside that goroutine may touch it.
type loopState struct {
	b *Buffer

	currentStep *step.Step
	recent      []stepmsg.Message

	timer    *time.Timer
	timerGen int

	stepsEmitted int
	timeouts     int
	errorsCount  int
	startTime    time.Time
}

func newLoopState(b *Buffer) *loopState {
	return &loopState{b: b, startTime: b.cfg.Clock()}
}

func (l *loopState) handle(req request) {
	switch req.kind {
	case opAddMessage:
		err := l.addMessage(req.msg)
		req.reply <- response{err: err}
	case opFlush:
		err := l.flush()
		req.reply <- response{err: err}
	case opStatus:
		req.reply <- response{status: l.status()}
	}
}

// addMessage implements the Buffer's five-step core loop.
func (l *loopState) addMessage(msg stepmsg.Message) error {
	_, span := l.b.tracer.StartSpan(context.Background(), "buffer.add_message")
	defer l.b.tracer.EndSpan(span)

	// 1. Resource ceilings.
	if err := l.checkResourceCeilings(); err != nil {
		l.errorsCount++
		l.b.handleError(err)
		l.forceComplete(step.StatusError)
		span.RecordError(err)
		return err
	}

	// 2. Cancel any pending timeout.
	l.cancelTimer()

	// 3. Ask the Detector for a decision.
	toolsSoFar := l.toolsUsedSoFar()
	decision := l.b.cfg.Detector.Analyze(msg, l.recent, toolsSoFar)

	// 4. Apply the decision.
	l.apply(decision, msg)

	l.pushRecent(msg)

	// 5. Arm a fresh timer if a Step is in progress.
	if l.currentStep != nil {
		l.armTimer()
	}

	span.SetAttribute(observability.AttrBufferMessageCount, len(l.recent))
	return nil
}

func (l *loopState) apply(decision detector.Decision, msg stepmsg.Message) {
	switch decision.Kind {
	case detector.DecisionStepStart:
		// A Step already open with an unestablished type is a placeholder
		// the detector never saw (it was opened locally on an earlier
		// step_continue with no current Step). Retype it in place instead
		// of closing and reopening, so the messages that led to this
		// classification stay part of the Step they classified.
		if l.currentStep != nil && l.currentStep.Type == step.TypeUnknown {
			l.currentStep.Type = decision.Type
			l.currentStep.AppendMessage(msg)
			if decision.Metadata != nil {
				l.currentStep.MergeMetadata(decision.Metadata)
			}
			return
		}
		l.startStep(decision.Type, msg)

	case detector.DecisionStepContinue:
		if l.currentStep == nil {
			l.startStep(step.TypeUnknown, msg)
			return
		}
		l.currentStep.AppendMessage(msg)
		if len(l.currentStep.Messages()) > l.b.cfg.MaxBufferSize {
			l.forceComplete(step.StatusCompleted)
		}

	case detector.DecisionStepEnd:
		if l.currentStep == nil {
			l.startStep(step.TypeUnknown, msg)
		} else {
			l.currentStep.AppendMessage(msg)
		}
		if decision.Metadata != nil {
			l.currentStep.MergeMetadata(decision.Metadata)
		}
		// The Detector already cleared its own in-progress type in
		// applyState for step_end; no Reset needed here.
		l.completeAndEmit(step.StatusCompleted, false)

	case detector.DecisionStepBoundary:
		l.completeAndEmit(step.StatusCompleted, false)
		l.startStep(decision.Type, msg)
	}
}

func (l *loopState) startStep(typ step.Type, seed stepmsg.Message) {
	if l.currentStep != nil {
		// A Step is still open even though the Detector just returned a
		// fresh step_start: Buffer and Detector state have diverged.
		// Reset so the Detector starts clean too.
		l.completeAndEmit(step.StatusCompleted, true)
	}
	s := step.New(step.NewID(), typ, l.b.cfg.Clock())
	s.AppendMessage(seed)
	l.currentStep = s
}

// completeAndEmit finalizes currentStep and emits it. resetDetector must be
// true whenever the completion was not itself decided by the Detector (a
// forced flush, timeout, resource ceiling, or shutdown), since otherwise the
// Detector's currentType stays set to the step that just closed and the
// next message of the same pattern type is misread as step_continue even
// though the Buffer has no Step left to continue.
func (l *loopState) completeAndEmit(status step.Status, resetDetector bool) {
	if l.currentStep == nil {
		return
	}
	s := l.currentStep
	l.currentStep = nil
	s.Complete(status, l.b.cfg.Clock())
	l.stepsEmitted++
	l.b.emit(s)
	if resetDetector {
		l.b.cfg.Detector.Reset()
	}
}

func (l *loopState) forceComplete(status step.Status) {
	if l.currentStep == nil {
		return
	}
	l.completeAndEmit(status, true)
}

// flush force-completes the current Step with status timeout and emits it.
// Idempotent when no Step is in progress.
func (l *loopState) flush() error {
	l.cancelTimer()
	if l.currentStep == nil {
		return nil
	}
	l.completeAndEmit(step.StatusTimeout, true)
	return nil
}

// onTimeout handles a timer firing. gen must match the currently armed
// timer's generation; a stale generation (the timer fired after being
// cancelled and replaced) is ignored.
func (l *loopState) onTimeout(gen int) {
	if gen != l.timerGen || l.currentStep == nil {
		return
	}
	l.timeouts++
	l.completeAndEmit(step.StatusTimeout, true)
}

func (l *loopState) flushOnShutdown() {
	l.cancelTimer()
	if l.currentStep != nil {
		l.completeAndEmit(step.StatusAborted, true)
	}
}

func (l *loopState) checkResourceCeilings() error {
	if l.currentStep == nil {
		return nil
	}
	count := len(l.currentStep.Messages())
	if count >= l.b.cfg.MaxBufferSize {
		return perr.NewResourceError("buffer size limit exceeded")
	}
	estimateBytes := count * bytesPerMessage
	maxBytes := l.b.cfg.MaxMemoryMB * 1024 * 1024
	if estimateBytes >= maxBytes {
		return perr.NewResourceError("buffer memory estimate limit exceeded")
	}
	return nil
}

func (l *loopState) armTimer() {
	l.timerGen++
	gen := l.timerGen
	l.timer = time.AfterFunc(l.b.cfg.BufferTimeout, func() {
		select {
		case l.b.timeoutCh <- gen:
		case <-l.b.done:
		}
	})
}

func (l *loopState) cancelTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
}

func (l *loopState) pushRecent(msg stepmsg.Message) {
	l.recent = append(l.recent, msg)
	if len(l.recent) > recentWindow {
		l.recent = l.recent[len(l.recent)-recentWindow:]
	}
}

func (l *loopState) toolsUsedSoFar() []string {
	if l.currentStep == nil {
		return nil
	}
	return l.currentStep.ToolsUsed()
}

func (l *loopState) status() Status {
	st := Status{
		BufferedCount: 0,
		StepsEmitted:  l.stepsEmitted,
		Timeouts:      l.timeouts,
		Errors:        l.errorsCount,
		Uptime:        l.b.cfg.Clock().Sub(l.startTime),
	}
	if l.currentStep != nil {
		st.CurrentStepID = l.currentStep.ID
		st.BufferedCount = len(l.currentStep.Messages())
		st.MemoryEstimate = st.BufferedCount * bytesPerMessage
	}
	return st
}
