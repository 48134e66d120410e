// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstep/pipeline/pkg/step"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedStep(typ step.Type) *step.Step {
	s := step.New(step.NewID(), typ, time.Unix(0, 0))
	s.Complete(step.StatusCompleted, time.Unix(1, 0))
	return s
}

// pollUntilOK polls NextStep until it observes PullOK or the deadline
// passes, since a pull is idempotent (not blocking-to-resolution) while
// waiting on a review or decision.
func pollUntilOK(t *testing.T, c *Controller, timeout time.Duration) Pull {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pull, err := c.NextStep(context.Background())
		require.NoError(t, err)
		if pull.Kind == PullOK {
			return pull
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for PullOK")
	return Pull{}
}

func newTestController(t *testing.T, cfg Config) (*Controller, chan *step.Step) {
	t.Helper()
	in := make(chan *step.Step, 8)
	cfg.StepsIn = in
	c := New(cfg)
	go c.Run()
	t.Cleanup(c.Stop)
	return c, in
}

func TestControllerAutomaticModePassesStepsThrough(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeAutomatic})
	in <- seedStep(step.TypeFileOperation)
	close(in)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullOK, pull.Kind)
	assert.Equal(t, step.TypeFileOperation, pull.Step.Type)

	pull, err = c.NextStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullCompleted, pull.Kind)
}

func TestControllerAutomaticPauseBetweenStepsRequiresResume(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeAutomatic, PauseBetweenSteps: true})
	in <- seedStep(step.TypeExploration)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullPaused, pull.Kind)

	_, err = c.Resume(context.Background(), Decision{Kind: DecisionContinue})
	require.NoError(t, err)

	pull, err = c.NextStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullOK, pull.Kind)
	assert.Equal(t, step.StatusCompleted, pull.Step.Status)
}

// TestControllerManualModeSkip implements scenario S4: paused(s1) ->
// resume(skip) -> next pull returns ok(s1') with status aborted.
func TestControllerManualModeSkip(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeManual, Clock: fixedClock(time.Unix(5, 0))})
	in <- seedStep(step.TypeCodeModification)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	require.Equal(t, PullPaused, pull.Kind)
	s1 := pull.Step

	_, err = c.Resume(context.Background(), Decision{Kind: DecisionSkip})
	require.NoError(t, err)

	pull, err = c.NextStep(context.Background())
	require.NoError(t, err)
	require.Equal(t, PullOK, pull.Kind)
	assert.Same(t, s1, pull.Step)
	assert.Equal(t, step.StatusAborted, pull.Step.Status)
	assert.False(t, pull.Step.CompletedAt.IsZero())
}

func TestControllerManualModeIdempotentPullWhilePaused(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeManual})
	in <- seedStep(step.TypeAnalysis)

	first, err := c.NextStep(context.Background())
	require.NoError(t, err)
	second, err := c.NextStep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Kind, second.Kind)
	assert.Same(t, first.Step, second.Step)
}

func TestControllerResumePauseIsNoOpWhilePaused(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeManual})
	in <- seedStep(step.TypeAnalysis)

	_, err := c.NextStep(context.Background())
	require.NoError(t, err)

	pull, err := c.Resume(context.Background(), Decision{Kind: DecisionPause})
	require.NoError(t, err)
	assert.Equal(t, PullPaused, pull.Kind)

	st, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "waiting_decision", st.State)
}

// TestControllerReviewApprovedWithChanges implements scenario S5.
func TestControllerReviewApprovedWithChanges(t *testing.T) {
	handler := func(ctx context.Context, s *step.Step) (ReviewResult, error) {
		desc := "X"
		return ReviewResult{
			Kind: ReviewApprovedWithChanges,
			Changes: &ReviewChanges{
				Description: &desc,
				Metadata:    map[string]any{"reviewed": true},
				Interventions: []step.Intervention{
					{ID: step.NewID(), Type: step.InterventionGuidance, Content: "Y", Priority: step.PriorityMedium},
				},
			},
		}, nil
	}
	c, in := newTestController(t, Config{Mode: ModeReviewRequired, ReviewHandler: handler})
	in <- seedStep(step.TypeCommunication)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	require.Equal(t, PullWaitingReview, pull.Kind)

	pull = pollUntilOK(t, c, time.Second)

	s := pull.Step
	assert.Equal(t, "X", s.Description)
	assert.Equal(t, true, s.Metadata["reviewed"])
	require.Len(t, s.Interventions, 1)
	assert.Equal(t, step.InterventionGuidance, s.Interventions[0].Type)
	assert.Equal(t, step.ReviewApproved, s.ReviewStatus)
	assert.Equal(t, step.StatusCompleted, s.Status)
}

// TestControllerReviewTimeout implements scenario S6.
func TestControllerReviewTimeout(t *testing.T) {
	handler := func(ctx context.Context, s *step.Step) (ReviewResult, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond) // keeps "running" past the deadline
		return ReviewResult{Kind: ReviewApproved}, nil
	}
	c, in := newTestController(t, Config{
		Mode:           ModeReviewRequired,
		ReviewHandler:  handler,
		ControlTimeout: 20 * time.Millisecond,
	})
	in <- seedStep(step.TypeSystemCommand)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	require.Equal(t, PullWaitingReview, pull.Kind)

	pull = pollUntilOK(t, c, time.Second)

	assert.Equal(t, step.ReviewRejected, pull.Step.ReviewStatus)
	assert.Equal(t, step.StatusAborted, pull.Step.Status)

	st, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.ReviewTimeouts)
}

func TestControllerReviewRejected(t *testing.T) {
	handler := func(ctx context.Context, s *step.Step) (ReviewResult, error) {
		return ReviewResult{Kind: ReviewRejected}, nil
	}
	c, in := newTestController(t, Config{Mode: ModeReviewRequired, ReviewHandler: handler})
	in <- seedStep(step.TypeFileOperation)

	_, err := c.NextStep(context.Background())
	require.NoError(t, err)

	pull := pollUntilOK(t, c, time.Second)
	assert.Equal(t, step.StatusAborted, pull.Step.Status)
	assert.Equal(t, step.ReviewRejected, pull.Step.ReviewStatus)
}

func TestControllerMissingReviewHandlerFallsBackToManual(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeReviewRequired})
	in <- seedStep(step.TypeAnalysis)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullPaused, pull.Kind)
}

func TestControllerAbortIsTerminal(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeManual})
	in <- seedStep(step.TypeAnalysis)

	_, err := c.NextStep(context.Background())
	require.NoError(t, err)

	_, err = c.Resume(context.Background(), Decision{Kind: DecisionAbort})
	require.NoError(t, err)

	_, err = c.NextStep(context.Background())
	assert.Error(t, err)
}

func TestControllerInterveneAppliesAndContinues(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeManual})
	in <- seedStep(step.TypeExploration)

	_, err := c.NextStep(context.Background())
	require.NoError(t, err)

	iv := step.Intervention{ID: step.NewID(), Type: step.InterventionCorrection, Content: "redo", Priority: step.PriorityHigh}
	_, err = c.Resume(context.Background(), Decision{Kind: DecisionIntervene, Intervention: iv})
	require.NoError(t, err)

	pull, err := c.NextStep(context.Background())
	require.NoError(t, err)
	require.Equal(t, PullOK, pull.Kind)
	require.Len(t, pull.Step.Interventions, 1)
	assert.Equal(t, step.InterventionAppliedStatus, pull.Step.Interventions[0].Status)
	assert.Equal(t, step.StatusCompleted, pull.Step.Status)
}

func TestControllerResumeWithoutPendingStepIsProtocolError(t *testing.T) {
	c, in := newTestController(t, Config{Mode: ModeAutomatic})
	in <- seedStep(step.TypeAnalysis)
	close(in)

	_, err := c.NextStep(context.Background())
	require.NoError(t, err)

	_, err = c.Resume(context.Background(), Decision{Kind: DecisionContinue})
	assert.Error(t, err)
}
