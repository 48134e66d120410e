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

// Package pipeline wires Pattern, Detector, Buffer, Controller, and History
// into the single running system a message stream is fed into and a Step
// stream is pulled out of. It owns nothing itself beyond the channel that
// hands Buffer's emissions to Controller; every piece of state lives inside
// one of the four components it assembles.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentstep/pipeline/internal/pubsub"
	"github.com/agentstep/pipeline/pkg/buffer"
	"github.com/agentstep/pipeline/pkg/config"
	"github.com/agentstep/pipeline/pkg/control"
	"github.com/agentstep/pipeline/pkg/detector"
	"github.com/agentstep/pipeline/pkg/history"
	"github.com/agentstep/pipeline/pkg/history/fileadapter"
	"github.com/agentstep/pipeline/pkg/history/sqliteadapter"
	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/pattern"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// Options carries the pieces of a Pipeline that config.Config cannot
// describe on its own: the conversation identity and the callbacks a
// review_required or manual Controller needs.
type Options struct {
	ConversationID      string
	ReviewHandler       control.ReviewHandler
	InterventionHandler control.InterventionHandler
	Logger              *zap.Logger
	Tracer              observability.Tracer
}

// Status aggregates a point-in-time snapshot of every component a Pipeline
// owns, mirroring the Observer surface each component exposes individually.
type Status struct {
	Buffer  buffer.Status
	Control control.Status
	History history.Status
}

// Pipeline is the assembled Pattern -> Detector -> Buffer -> Controller ->
// History chain.
type Pipeline struct {
	library *pattern.Library
	det     *detector.Detector
	buf     *buffer.Buffer
	ctrl    *control.Controller
	hist    *history.History

	steps     chan *step.Step
	notify    *notifier
	closeOnce sync.Once

	hotReload *pattern.HotReloader
	logger    *zap.Logger
}

// New constructs every component from cfg and opts but starts none of their
// owner goroutines; call Run to start the pipeline.
func New(ctx context.Context, cfg config.Config, opts Options) (*Pipeline, error) {
	if opts.ConversationID == "" {
		return nil, perr.NewConfigError("pipeline: ConversationID is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NewNoOpTracer()
	}

	library, err := loadLibrary(cfg.Detection)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load patterns: %w", err)
	}

	// Optimizer is intentionally left nil: it is only a sound shortcut when
	// detector state doesn't affect classification, which never holds for
	// pattern_based or hybrid — the pipeline's only strategies that matter
	// in practice. See detector.Optimizer's doc comment.
	det := detector.New(detector.Config{
		Strategy:            detector.Strategy(cfg.Detection.Strategy),
		Library:             library,
		ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
	})

	stepsCh := make(chan *step.Step, cfg.Buffer.MaxBufferSize)
	notify := newNotifier()

	buf := buffer.New(buffer.Config{
		Detector: det,
		Handler: func(s *step.Step) {
			stepsCh <- s
			notify.publish(pubsub.NewCreatedEvent(s))
		},
		ErrorHandler:  func(err error) { opts.Logger.Warn("pipeline: buffer error", zap.Error(err)) },
		MaxBufferSize: cfg.Buffer.MaxBufferSize,
		MaxMemoryMB:   cfg.Buffer.MaxMemoryMB,
		BufferTimeout: millis(cfg.Buffer.BufferTimeoutMS),
		Logger:        opts.Logger,
		Tracer:        opts.Tracer,
	})

	ctrl := control.New(control.Config{
		Mode:                control.Mode(cfg.Control.Mode),
		PauseBetweenSteps:   cfg.Control.PauseBetweenSteps,
		ControlTimeout:      millis(cfg.Control.ControlTimeoutMS),
		ReviewHandler:       opts.ReviewHandler,
		InterventionHandler: opts.InterventionHandler,
		StepsIn:             stepsCh,
		Logger:              opts.Logger,
		Tracer:              opts.Tracer,
	})

	adapter, err := buildAdapter(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build persistence adapter: %w", err)
	}

	hist, err := history.New(ctx, history.Config{
		ConversationID:         opts.ConversationID,
		Adapter:                adapter,
		MaxStepHistory:         cfg.History.MaxStepHistory,
		PreserveCheckpoints:    cfg.History.PreserveCheckpoints,
		AutoCheckpointInterval: cfg.History.AutoCheckpointInterval,
		EnableRecovery:         cfg.History.EnableRecovery,
		Logger:                 opts.Logger,
		Tracer:                 opts.Tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: construct history: %w", err)
	}

	var hotReload *pattern.HotReloader
	if cfg.Detection.HotReloadDir != "" {
		hotReload, err = pattern.NewHotReloader(library, cfg.Detection.HotReloadDir, pattern.HotReloadConfig{
			Enabled:    true,
			DebounceMs: cfg.Detection.HotReloadDebounceMS,
			Logger:     opts.Logger,
			Tracer:     opts.Tracer,
			OnUpdate: func(event, path string, err error) {
				if err != nil {
					opts.Logger.Warn("pipeline: pattern hot-reload failed", zap.String("event", event), zap.String("path", path), zap.Error(err))
					return
				}
				opts.Logger.Info("pipeline: pattern hot-reload applied", zap.String("event", event), zap.String("path", path))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: construct pattern hot-reloader: %w", err)
		}
		if err := hotReload.Start(ctx); err != nil {
			return nil, fmt.Errorf("pipeline: start pattern hot-reload: %w", err)
		}
	}

	return &Pipeline{
		library:   library,
		det:       det,
		buf:       buf,
		ctrl:      ctrl,
		hist:      hist,
		steps:     stepsCh,
		notify:    notify,
		hotReload: hotReload,
		logger:    opts.Logger,
	}, nil
}

func loadLibrary(cfg config.DetectionConfig) (*pattern.Library, error) {
	if cfg.Patterns == "" || cfg.Patterns == "default" {
		return pattern.NewDefaultLibrary(), nil
	}
	patterns, err := pattern.LoadFile(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	return pattern.NewLibrary(patterns)
}

func buildAdapter(cfg config.HistoryConfig) (history.Adapter, error) {
	switch cfg.PersistenceAdapter {
	case "", "none":
		return nil, nil
	case "file":
		dir := cfg.PersistenceConfig
		if dir == "" {
			dir = config.SubDir("conversations")
		}
		return fileadapter.New(dir), nil
	case "sqlite":
		path := cfg.PersistenceConfig
		if path == "" {
			path = config.SubDir("history.db")
		}
		return sqliteadapter.New(path), nil
	default:
		return nil, fmt.Errorf("unknown persistence_adapter %q", cfg.PersistenceAdapter)
	}
}

// Run starts every component's owner goroutine. It returns once all of them
// have been started; it does not block for their lifetime.
func (p *Pipeline) Run() {
	go p.buf.Run()
	go p.ctrl.Run()
	go p.hist.Run()
}

// Ingest feeds one message into the Detector by way of the Buffer.
func (p *Pipeline) Ingest(msg stepmsg.Message) error {
	return p.buf.AddMessage(msg)
}

// NextStep pulls the next Step from the Controller. When the pull yields a
// completed Step (control.PullOK), it is also saved to History before
// NextStep returns, so a caller that only ever calls NextStep still ends up
// with a durable, replayable history.
func (p *Pipeline) NextStep(ctx context.Context) (control.Pull, error) {
	pull, err := p.ctrl.NextStep(ctx)
	if err != nil {
		return pull, err
	}
	if pull.Kind == control.PullOK && pull.Step != nil {
		if err := p.hist.SaveStep(ctx, pull.Step); err != nil {
			return pull, fmt.Errorf("pipeline: save step to history: %w", err)
		}
	}
	return pull, nil
}

// Resume answers a paused or waiting_review pull.
func (p *Pipeline) Resume(ctx context.Context, d control.Decision) (control.Pull, error) {
	return p.ctrl.Resume(ctx, d)
}

// RestoreCheckpoint restores History to a Checkpoint's snapshot and notifies
// Subscribe-ers of every Step the restored view now contains, so a consumer
// tracking Step lifecycle stays in sync across a restore.
func (p *Pipeline) RestoreCheckpoint(ctx context.Context, id string) error {
	if err := p.hist.RestoreCheckpoint(ctx, id); err != nil {
		return err
	}
	steps, err := p.hist.GetHistory(ctx)
	if err != nil {
		return err
	}
	for _, s := range steps {
		p.notify.publish(pubsub.NewUpdatedEvent(s))
	}
	return nil
}

// Flush force-completes any Step in progress in the Buffer.
func (p *Pipeline) Flush() error {
	return p.buf.Flush()
}

// History exposes the assembled History component directly, for callers
// that need checkpoint or replay operations beyond the Step stream.
func (p *Pipeline) History() *history.History {
	return p.hist
}

// Status aggregates Buffer, Controller, and History status snapshots.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	var out Status
	var err error

	out.Buffer, err = p.buf.Status()
	if err != nil {
		return out, fmt.Errorf("pipeline: buffer status: %w", err)
	}
	out.Control, err = p.ctrl.GetStatus()
	if err != nil {
		return out, fmt.Errorf("pipeline: controller status: %w", err)
	}
	out.History, err = p.hist.Stats(ctx)
	if err != nil {
		return out, fmt.Errorf("pipeline: history stats: %w", err)
	}
	return out, nil
}

// CloseInput shuts the Buffer down (flushing any in-progress Step) and
// closes the channel that feeds the Controller, so a subsequent NextStep
// loop observes control.PullCompleted once every emitted Step has been
// pulled, instead of blocking forever waiting for upstream that will never
// arrive. Safe to call multiple times; Shutdown also calls it.
func (p *Pipeline) CloseInput() {
	p.buf.Shutdown()
	p.closeOnce.Do(func() { close(p.steps) })
}

// Shutdown stops every component in emission order: the Buffer first (so no
// new Step reaches the Controller), then the Controller, then History. The
// pattern hot-reloader, if running, is stopped first of all.
func (p *Pipeline) Shutdown() {
	if p.hotReload != nil {
		if err := p.hotReload.Stop(); err != nil {
			p.logger.Warn("pipeline: pattern hot-reload stop failed", zap.Error(err))
		}
	}
	p.CloseInput()
	p.ctrl.Stop()
	p.hist.Shutdown()
}
