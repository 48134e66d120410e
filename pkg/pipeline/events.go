// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pipeline

import (
	"github.com/agentstep/pipeline/internal/csync"
	"github.com/agentstep/pipeline/internal/pubsub"
	"github.com/agentstep/pipeline/pkg/step"
)

// StepEvent is published whenever a Step is emitted by the Buffer or
// restored from a Checkpoint by History; creating a Checkpoint publishes
// nothing.
type StepEvent = pubsub.Event[*step.Step]

// notifier fans Step lifecycle events out to subscribers registered via
// Pipeline.Subscribe. Subscriber channels are buffered; a subscriber that
// falls behind has events dropped for it rather than stalling emission.
type notifier struct {
	subs   *csync.Map[int, chan StepEvent]
	nextID int
}

func newNotifier() *notifier {
	return &notifier{subs: csync.NewMap[int, chan StepEvent]()}
}

// subscribe registers a new subscriber and returns its channel and an
// unsubscribe function.
func (n *notifier) subscribe(buf int) (<-chan StepEvent, func()) {
	id := n.nextID
	n.nextID++
	ch := make(chan StepEvent, buf)
	n.subs.Set(id, ch)
	return ch, func() {
		n.subs.Delete(id)
		close(ch)
	}
}

func (n *notifier) publish(ev StepEvent) {
	n.subs.Seq(func(_ int, ch chan StepEvent) bool {
		select {
		case ch <- ev:
		default:
		}
		return true
	})
}

// Subscribe returns a channel of StepEvents (created, on a fresh emission;
// updated, on a checkpoint restore replacing the in-flight view) and an
// unsubscribe function the caller must eventually invoke.
func (p *Pipeline) Subscribe(bufferSize int) (<-chan StepEvent, func()) {
	return p.notify.subscribe(bufferSize)
}
