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

// Package history keeps an append-only, bounded log of completed Steps plus
// a set of named Checkpoints, durably backed by a pluggable Adapter. Like
// Buffer and Controller, a History is a single-writer active component: one
// goroutine owns the in-memory log, and every public operation is a request
// posted to that goroutine's mailbox and answered on a reply channel —
// persistence I/O runs on that same owner goroutine, so two saves can never
// race each other to the adapter.
package history

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
)

const (
	defaultMaxStepHistory = 100
)

// Config configures a History at construction.
type Config struct {
	ConversationID string
	Adapter        Adapter // nil disables persistence; History stays in-memory only

	MaxStepHistory         int  // default 100
	PreserveCheckpoints    bool // false unless set; pkg/config defaults it to true
	AutoCheckpointInterval int  // 0 disables auto-checkpointing
	EnableRecovery         bool // false unless set; pkg/config defaults it to true; see New

	Clock  func() time.Time
	Logger *zap.Logger
	Tracer observability.Tracer
}

// Status is a point-in-time snapshot of History health.
type Status struct {
	ConversationID           string
	StepCount                int
	CheckpointCount          int
	StepCountSinceCheckpoint int
	Saves                    int
	Prunes                   int
	CheckpointsCreated       int
	Restores                 int
	Errors                   int
	Uptime                   time.Duration
}

// PruneOptions configures a Prune call. A zero value reuses History's
// configured MaxStepHistory and PreserveCheckpoints.
type PruneOptions struct {
	MaxStepHistory      int
	PreserveCheckpoints *bool // nil means "use Config.PreserveCheckpoints"
}

type opKind int

const (
	opSaveStep opKind = iota
	opCreateCheckpoint
	opRestoreCheckpoint
	opGetHistory
	opGetCheckpoints
	opPrune
	opClear
	opStatus
	opSnapshotForReplay
	opShutdown
)

type request struct {
	kind    opKind
	ctx     context.Context
	step    *step.Step
	label   string
	checkID string
	opts    PruneOptions
	reply   chan response
}

type response struct {
	steps       []*step.Step
	checkpoints []step.Checkpoint
	checkpoint  step.Checkpoint
	pruned      int
	status      Status
	err         error
}

// History is the serialized owner of the bounded Step log and Checkpoint set.
type History struct {
	cfg    Config
	logger *zap.Logger
	tracer observability.Tracer

	ops      chan request
	shutdown chan struct{}
	done     chan struct{}

	initial ConversationData
}

// New constructs a History, performing the startup load described in
// §4.5: if cfg.Adapter is set, it is initialized and asked to load
// cfg.ConversationID. A missing record starts History empty. A load failure
// starts History empty (logged) when EnableRecovery is set, otherwise New
// fails outright. The owner goroutine is not started until Run is called.
func New(ctx context.Context, cfg Config) (*History, error) {
	if cfg.MaxStepHistory <= 0 {
		cfg.MaxStepHistory = defaultMaxStepHistory
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
	if cfg.ConversationID == "" {
		return nil, perr.NewConfigError("history: ConversationID is required")
	}

	h := &History{
		cfg:      cfg,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		ops:      make(chan request),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.Adapter == nil {
		h.initial = ConversationData{ConversationID: cfg.ConversationID}
		return h, nil
	}

	if err := cfg.Adapter.Init(ctx); err != nil {
		return nil, perr.NewHandlerError(err, "history: adapter init failed")
	}

	data, err := cfg.Adapter.LoadConversation(ctx, cfg.ConversationID)
	switch {
	case err == nil:
		h.initial = data
	case errors.Is(err, ErrNotFound):
		h.initial = ConversationData{ConversationID: cfg.ConversationID}
	default:
		if !cfg.EnableRecovery {
			return nil, perr.NewCorruptionError(err, "history: load failed for conversation %q", cfg.ConversationID)
		}
		cfg.Logger.Warn("history: starting empty after corrupted load",
			zap.String("conversation_id", cfg.ConversationID), zap.Error(err))
		h.cfg = cfg
		h.initial = ConversationData{ConversationID: cfg.ConversationID}
	}
	return h, nil
}

// Run drives the History's owner loop until Shutdown is called. It must be
// started in its own goroutine.
func (h *History) Run() {
	loop := newOwnerLoop(h)
	defer close(h.done)

	for {
		select {
		case req := <-h.ops:
			loop.handle(req)
		case <-h.shutdown:
			return
		}
	}
}

func (h *History) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	req.ctx = ctx
	select {
	case h.ops <- req:
	case <-h.done:
		return response{}, perr.NewProtocolError("history is shut down")
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, r.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// SaveStep appends s to the bounded log, persisting the updated state
// through the configured Adapter (if any). It may trigger an auto-checkpoint
// and a prune pass, in that order, per §4.5.
func (h *History) SaveStep(ctx context.Context, s *step.Step) error {
	r, err := h.call(ctx, request{kind: opSaveStep, step: s})
	if err != nil {
		return err
	}
	return r.err
}

// CreateCheckpoint snapshots the current log under label and returns its id.
func (h *History) CreateCheckpoint(ctx context.Context, label string) (string, error) {
	r, err := h.call(ctx, request{kind: opCreateCheckpoint, label: label})
	if err != nil {
		return "", err
	}
	return r.checkpoint.ID, r.err
}

// RestoreCheckpoint replaces the in-memory log with the Checkpoint's
// snapshot, resolved against the Steps currently in the in-memory log; a
// snapshot Step that has since been pruned is not restored. It does not
// delete other Checkpoints and resets the auto-checkpoint counter.
func (h *History) RestoreCheckpoint(ctx context.Context, id string) error {
	r, err := h.call(ctx, request{kind: opRestoreCheckpoint, checkID: id})
	if err != nil {
		return err
	}
	return r.err
}

// GetHistory returns the current bounded Step log in chronological order.
func (h *History) GetHistory(ctx context.Context) ([]*step.Step, error) {
	r, err := h.call(ctx, request{kind: opGetHistory})
	if err != nil {
		return nil, err
	}
	return r.steps, r.err
}

// GetCheckpoints returns every known Checkpoint, oldest first.
func (h *History) GetCheckpoints(ctx context.Context) ([]step.Checkpoint, error) {
	r, err := h.call(ctx, request{kind: opGetCheckpoints})
	if err != nil {
		return nil, err
	}
	return r.checkpoints, r.err
}

// Prune removes the oldest Steps until the log satisfies opts (or History's
// configured defaults), preserving checkpoint-referenced Steps unless told
// not to. It returns the number of Steps removed.
func (h *History) Prune(ctx context.Context, opts PruneOptions) (int, error) {
	r, err := h.call(ctx, request{kind: opPrune, opts: opts})
	if err != nil {
		return 0, err
	}
	return r.pruned, r.err
}

// Clear empties the log and the checkpoint set, persisting the cleared
// state. It does not remove the conversation record itself.
func (h *History) Clear(ctx context.Context) error {
	r, err := h.call(ctx, request{kind: opClear})
	if err != nil {
		return err
	}
	return r.err
}

// Stats returns a snapshot of History health.
func (h *History) Stats(ctx context.Context) (Status, error) {
	r, err := h.call(ctx, request{kind: opStatus})
	if err != nil {
		return Status{}, err
	}
	return r.status, r.err
}

// Shutdown stops the owner loop. Safe to call multiple times.
func (h *History) Shutdown() {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.shutdown <- struct{}{}:
	case <-h.done:
	}
	<-h.done
	if cleanup, ok := h.cfg.Adapter.(CleanupAdapter); ok {
		if err := cleanup.Cleanup(context.Background()); err != nil {
			h.logger.Warn("history: adapter cleanup failed", zap.Error(err))
		}
	}
}
