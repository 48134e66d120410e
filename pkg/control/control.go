// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package control implements the Controller: a pull-interface gateway that
// serves Steps to a consumer one at a time, under an execution mode that
// decides whether a Step needs a pause, a review, or neither before it is
// surfaced.
//
// Like Buffer, a Controller is a single-writer active component: one
// goroutine owns its state machine, and every public method is a request
// posted to that goroutine's mailbox and answered on a reply channel.
package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

// Mode selects how the Controller treats each Step it pulls from upstream.
type Mode string

const (
	// ModeAutomatic returns ok(step) immediately, unless PauseBetweenSteps.
	ModeAutomatic Mode = "automatic"
	// ModeManual pauses on every Step and waits for resume.
	ModeManual Mode = "manual"
	// ModeReviewRequired submits every Step to a review handler.
	ModeReviewRequired Mode = "review_required"
)

// DecisionKind is the consumer's answer to a paused or reviewed Step.
type DecisionKind string

const (
	DecisionContinue  DecisionKind = "continue"
	DecisionPause     DecisionKind = "pause"
	DecisionSkip      DecisionKind = "skip"
	DecisionAbort     DecisionKind = "abort"
	DecisionIntervene DecisionKind = "intervene"
)

// Decision is passed to Resume.
type Decision struct {
	Kind         DecisionKind
	Intervention step.Intervention // only read when Kind == DecisionIntervene
}

// PullKind is the shape of a Pull result.
type PullKind string

const (
	PullOK            PullKind = "ok"
	PullPaused        PullKind = "paused"
	PullWaitingReview PullKind = "waiting_review"
	PullCompleted     PullKind = "completed"
)

// Pull is the result of NextStep.
type Pull struct {
	Kind PullKind
	Step *step.Step
}

// defaultControlTimeout is the review/decision timeout, control_timeout_ms.
const defaultControlTimeout = 30 * time.Second

// Config configures a Controller at construction.
type Config struct {
	Mode                Mode
	PauseBetweenSteps   bool
	ControlTimeout      time.Duration // default 30s
	ReviewHandler       ReviewHandler
	InterventionHandler InterventionHandler

	// StepsIn is the upstream Step source, typically fed by a Buffer's
	// Handler. Closing it signals the stream is exhausted.
	StepsIn <-chan *step.Step

	Clock  func() time.Time
	Logger *zap.Logger
	Tracer observability.Tracer
}

type ownerState int

const (
	stateRunning ownerState = iota
	stateWaitingDecision
	stateWaitingReview
	stateCompleted
	stateAborted
)

type opKind int

const (
	opNextStep opKind = iota
	opResume
	opStatus
	opStop
)

type request struct {
	kind     opKind
	decision Decision
	reply    chan reply
}

type reply struct {
	pull   Pull
	status Status
	err    error
}

// Status is a point-in-time snapshot of Controller health.
type Status struct {
	Mode          Mode
	State         string
	Emissions     int
	Errors        int
	ReviewTimeouts int
	Uptime        time.Duration
}

// Controller serializes Step delivery under a configured Mode.
type Controller struct {
	cfg    Config
	logger *zap.Logger
	tracer observability.Tracer

	ops          chan request
	reviewResult chan reviewOutcome
	done         chan struct{}
	stopOnce     chan struct{}
}

// New constructs a Controller. The owner goroutine is not started until Run
// is called.
func New(cfg Config) *Controller {
	if cfg.ControlTimeout <= 0 {
		cfg.ControlTimeout = defaultControlTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Mode == ModeReviewRequired && cfg.ReviewHandler == nil {
		cfg.Mode = ModeManual
	}

	return &Controller{
		cfg:          cfg,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		ops:          make(chan request),
		reviewResult: make(chan reviewOutcome, 1),
		done:         make(chan struct{}),
		stopOnce:     make(chan struct{}, 1),
	}
}

// Run drives the Controller's owner loop until the upstream Step source is
// exhausted or Stop is called. It must be started in its own goroutine.
func (c *Controller) Run() {
	loop := newOwnerLoop(c)
	defer close(c.done)
	loop.run()
}

// NextStep pulls the next result from the Controller. It blocks until the
// owner loop can answer, which may in turn wait on an upstream emission or
// a review task.
func (c *Controller) NextStep(ctx context.Context) (Pull, error) {
	return c.call(ctx, request{kind: opNextStep})
}

// Resume answers a paused or waiting_review pull with a Decision.
func (c *Controller) Resume(ctx context.Context, d Decision) (Pull, error) {
	return c.call(ctx, request{kind: opResume, decision: d})
}

// GetStatus returns a snapshot of Controller health.
func (c *Controller) GetStatus() (Status, error) {
	req := request{kind: opStatus, reply: make(chan reply, 1)}
	select {
	case c.ops <- req:
	case <-c.done:
		return Status{}, perr.NewProtocolError("controller is shut down")
	}
	r := <-req.reply
	return r.status, r.err
}

// Stop shuts the Controller down: any in-flight review task is cancelled
// (treated as rejected) and further pulls return an aborted protocol error.
// Safe to call multiple times.
func (c *Controller) Stop() {
	select {
	case c.stopOnce <- struct{}{}:
	default:
		return
	}
	reply := make(chan reply, 1)
	select {
	case c.ops <- request{kind: opStop, reply: reply}:
		<-reply
	case <-c.done:
	}
}

func (c *Controller) call(ctx context.Context, req request) (Pull, error) {
	req.reply = make(chan reply, 1)
	select {
	case c.ops <- req:
	case <-c.done:
		return Pull{}, perr.NewProtocolError("controller is shut down")
	case <-ctx.Done():
		return Pull{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.pull, r.err
	case <-ctx.Done():
		return Pull{}, ctx.Err()
	}
}
