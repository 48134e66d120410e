// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pattern

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentstep/pipeline/pkg/perr"
)

// Library holds an immutable, compiled set of Patterns. Patterns and their
// regexes/tool sets are compiled once at construction or Reload; the
// compiled set is then safe for concurrent read-only use by any number of
// Detectors.
type Library struct {
	mu       sync.RWMutex
	patterns []Pattern
	byID     map[string]int
}

// NewLibrary builds a Library from patterns, validating each one.
func NewLibrary(patterns []Pattern) (*Library, error) {
	lib := &Library{}
	if err := lib.install(patterns); err != nil {
		return nil, err
	}
	return lib, nil
}

// NewDefaultLibrary builds a Library from the built-in pattern vocabulary.
func NewDefaultLibrary() *Library {
	lib, err := NewLibrary(Builtin())
	if err != nil {
		panic(fmt.Sprintf("pattern: builtin vocabulary failed validation: %v", err))
	}
	return lib
}

func (l *Library) install(patterns []Pattern) error {
	byID := make(map[string]int, len(patterns))
	for i, p := range patterns {
		if err := validatePattern(p); err != nil {
			return &perr.Error{Kind: perr.KindConfig, Message: fmt.Sprintf("pattern %q invalid", p.ID), Cause: err}
		}
		if _, dup := byID[p.ID]; dup {
			return perr.NewConfigError("pattern %q: duplicate id", p.ID)
		}
		byID[p.ID] = i
	}

	sorted := make([]Pattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	// byID must index into the post-sort slice.
	byID = make(map[string]int, len(sorted))
	for i, p := range sorted {
		byID[p.ID] = i
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.patterns = sorted
	l.byID = byID
	return nil
}

func validatePattern(p Pattern) error {
	if p.ID == "" {
		return perr.NewConfigError("id is required")
	}
	if p.Priority < 0 || p.Priority > 100 {
		return perr.NewConfigError("priority %d out of range [0,100]", p.Priority)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return perr.NewConfigError("confidence %v out of range [0,1]", p.Confidence)
	}
	if len(p.Triggers) == 0 {
		return perr.NewConfigError("pattern has no triggers; it could never fire")
	}
	return nil
}

// Reload atomically replaces the installed pattern set. Used by hot-reload
// to apply an on-disk pattern-set change without tearing down Detectors
// holding a reference to this Library.
func (l *Library) Reload(patterns []Pattern) error {
	return l.install(patterns)
}

// Patterns returns a snapshot of the installed patterns, priority-descending.
func (l *Library) Patterns() []Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Pattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// ByID returns the pattern with the given ID, if installed.
func (l *Library) ByID(id string) (Pattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return l.patterns[idx], true
}

// Best evaluates every installed pattern against ctx and returns the
// winning Match, if any pattern's match confidence is at least threshold.
// Ties are broken by priority descending (already the installed order),
// then match confidence descending.
func (l *Library) Best(ctx Context, threshold float64) (Match, bool) {
	l.mu.RLock()
	patterns := l.patterns
	l.mu.RUnlock()

	var best Match
	found := false

	for _, p := range patterns {
		m := Evaluate(p, ctx)
		if !m.Validated || m.MatchConfidence < threshold {
			continue
		}
		if !found {
			best, found = m, true
			continue
		}
		if p.Priority > best.Pattern.Priority {
			best = m
			continue
		}
		if p.Priority == best.Pattern.Priority && m.MatchConfidence > best.MatchConfidence {
			best = m
		}
	}

	return best, found
}
