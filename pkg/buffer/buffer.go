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

// Package buffer accumulates messages into Steps and emits them once
// complete. A Buffer is a single-writer active component: one goroutine
// owns current_step and message_buffer, and every public operation is
// really a request posted to that goroutine's mailbox and answered on a
// reply channel, so ordering is deterministic regardless of how many
// goroutines call in.
package buffer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentstep/pipeline/pkg/detector"
	"github.com/agentstep/pipeline/pkg/observability"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// Handler receives completed Steps as the Buffer emits them.
type Handler func(*step.Step)

// ErrorHandler is notified of resource, detection, and emission faults.
// It must not block the Buffer's owner goroutine for long.
type ErrorHandler func(error)

// Config configures a Buffer at construction.
type Config struct {
	Detector       *detector.Detector
	Handler        Handler
	ErrorHandler   ErrorHandler
	MaxBufferSize  int           // default 100
	MaxMemoryMB    int           // default 50
	BufferTimeout  time.Duration // default 5s
	Clock          func() time.Time
	Logger         *zap.Logger
	Tracer         observability.Tracer
}

const (
	defaultMaxBufferSize = 100
	defaultMaxMemoryMB   = 50
	defaultBufferTimeout = 5 * time.Second
	bytesPerMessage      = 1024 // ~1 KiB per message, per the resource model
)

// Status is a point-in-time snapshot of Buffer health.
type Status struct {
	CurrentStepID   string
	BufferedCount   int
	MemoryEstimate  int
	StepsEmitted    int
	Timeouts        int
	Errors          int
	Uptime          time.Duration
}

type opKind int

const (
	opAddMessage opKind = iota
	opFlush
	opStatus
	opTimeout
	opShutdown
)

type request struct {
	kind  opKind
	msg   stepmsg.Message
	reply chan response
}

type response struct {
	status Status
	err    error
}

// Buffer is the serialized owner of the in-progress Step.
type Buffer struct {
	cfg    Config
	logger *zap.Logger
	tracer observability.Tracer

	ops       chan request
	timeoutCh chan int
	shutdown  chan struct{}
	done      chan struct{}
}

// New constructs a Buffer. The owner goroutine is not started until Run is
// called.
func New(cfg Config) *Buffer {
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = defaultMaxBufferSize
	}
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = defaultMaxMemoryMB
	}
	if cfg.BufferTimeout <= 0 {
		cfg.BufferTimeout = defaultBufferTimeout
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
	if cfg.Detector == nil {
		cfg.Detector = detector.New(detector.Config{})
	}

	return &Buffer{
		cfg:       cfg,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		ops:       make(chan request),
		timeoutCh: make(chan int, 1),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives the Buffer's owner loop until Shutdown is called. It must be
// started in its own goroutine.
func (b *Buffer) Run() {
	loop := newLoopState(b)
	defer close(b.done)

	for {
		select {
		case req := <-b.ops:
			loop.handle(req)
		case gen := <-b.timeoutCh:
			loop.onTimeout(gen)
		case <-b.shutdown:
			loop.flushOnShutdown()
			return
		}
	}
}

// AddMessage enqueues msg for processing and blocks until the Buffer has
// applied its core-loop steps for it.
func (b *Buffer) AddMessage(msg stepmsg.Message) error {
	reply := make(chan response, 1)
	select {
	case b.ops <- request{kind: opAddMessage, msg: msg, reply: reply}:
	case <-b.done:
		return perr.NewProtocolError("buffer is shut down")
	}
	r := <-reply
	return r.err
}

// Flush force-completes the current Step, if any, with status timeout, and
// emits it. Idempotent when no Step is in progress.
func (b *Buffer) Flush() error {
	reply := make(chan response, 1)
	select {
	case b.ops <- request{kind: opFlush, reply: reply}:
	case <-b.done:
		return perr.NewProtocolError("buffer is shut down")
	}
	r := <-reply
	return r.err
}

// Status returns a snapshot of Buffer health.
func (b *Buffer) Status() (Status, error) {
	reply := make(chan response, 1)
	select {
	case b.ops <- request{kind: opStatus, reply: reply}:
	case <-b.done:
		return Status{}, perr.NewProtocolError("buffer is shut down")
	}
	r := <-reply
	return r.status, r.err
}

// Shutdown stops the owner loop after flushing any in-progress Step
// exactly once. Safe to call multiple times.
func (b *Buffer) Shutdown() {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.shutdown <- struct{}{}:
	case <-b.done:
	}
	<-b.done
}

func (b *Buffer) handleError(err error) {
	if b.cfg.ErrorHandler == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("buffer error handler panicked", zap.Any("recover", r))
			}
		}()
		b.cfg.ErrorHandler(err)
	}()
}

func (b *Buffer) emit(s *step.Step) {
	if b.cfg.Handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("buffer: emission handler panicked: %v", r)
			b.logger.Error("emission handler panicked", zap.Any("recover", r))
			b.handleError(err)
		}
	}()
	b.cfg.Handler(s)
}
