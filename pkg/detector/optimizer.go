// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package detector

import (
	"container/list"
	"crypto/md5" //nolint:gosec // cache key, not a security boundary
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/agentstep/pipeline/pkg/pattern"
)

// Optimizer is an LRU cache of detection results keyed by
// (message kind, sorted tool set, hash of content). It is a sound shortcut
// only when detector state (the in-progress step type) is irrelevant to the
// classification — which is never true for pattern_based or hybrid, since
// the transition rule always depends on CurrentType. It exists for
// benchmarking and for repeatable-message workloads where the caller
// accepts that tradeoff explicitly; it is never a correctness dependency of
// the pipeline itself.
type Optimizer struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List

	hits   int
	misses int
}

type optimizerEntry struct {
	key      string
	decision Decision
}

// NewOptimizer creates an LRU cache with the given capacity. A non-positive
// capacity disables eviction tracking and the cache grows unbounded — not
// recommended outside of short-lived benchmarks.
func NewOptimizer(capacity int) *Optimizer {
	return &Optimizer{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func cacheKey(ctx pattern.Context) string {
	tools := make([]string, len(ctx.ToolsUsedSoFar))
	copy(tools, ctx.ToolsUsedSoFar)
	sort.Strings(tools)

	sum := md5.Sum([]byte(ctx.ContentText)) //nolint:gosec // non-cryptographic cache key
	return string(ctx.Message.Kind) + "|" + strings.Join(tools, ",") + "|" + hex.EncodeToString(sum[:])
}

// Get looks up a cached decision for ctx.
func (o *Optimizer) Get(ctx pattern.Context) (Decision, bool) {
	key := cacheKey(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	el, ok := o.entries[key]
	if !ok {
		o.misses++
		return Decision{}, false
	}
	o.order.MoveToFront(el)
	o.hits++
	return el.Value.(*optimizerEntry).decision, true
}

// Put stores decision for ctx, evicting the least-recently-used entry if
// the cache is at capacity.
func (o *Optimizer) Put(ctx pattern.Context, decision Decision) {
	key := cacheKey(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if el, ok := o.entries[key]; ok {
		el.Value.(*optimizerEntry).decision = decision
		o.order.MoveToFront(el)
		return
	}

	el := o.order.PushFront(&optimizerEntry{key: key, decision: decision})
	o.entries[key] = el

	if o.capacity > 0 && o.order.Len() > o.capacity {
		oldest := o.order.Back()
		if oldest != nil {
			o.order.Remove(oldest)
			delete(o.entries, oldest.Value.(*optimizerEntry).key)
		}
	}
}

// Stats returns cumulative hit/miss counts.
func (o *Optimizer) Stats() (hits, misses int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits, o.misses
}
