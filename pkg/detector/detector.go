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

// Package detector turns a stream of messages into step-boundary decisions.
// A Detector is pure with respect to everything but its own small state: the
// type of the step currently in progress and a short history of past
// decisions. It holds no I/O resources and never shares mutable state across
// goroutines by itself — the Buffer owns the single Detector instance it
// drives.
package detector

import (
	"regexp"

	"github.com/agentstep/pipeline/pkg/pattern"
	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// DecisionKind is the tag of a Decision.
type DecisionKind string

const (
	DecisionStepStart    DecisionKind = "step_start"
	DecisionStepContinue DecisionKind = "step_continue"
	DecisionStepEnd      DecisionKind = "step_end"
	DecisionStepBoundary DecisionKind = "step_boundary"
)

// Decision is the outcome of analyzing one message.
type Decision struct {
	Kind     DecisionKind
	Type     step.Type      // set for step_start and step_boundary
	Metadata map[string]any // merged into the step by the Buffer on step_end, and on a step_start that retypes its placeholder step; ignored on step_boundary
}

// maxDecisionHistory bounds the detector's remembered decisions.
const maxDecisionHistory = 10

// Strategy selects how a Detector classifies messages.
type Strategy string

const (
	StrategyPatternBased Strategy = "pattern_based"
	StrategyHeuristic    Strategy = "heuristic"
	StrategyHybrid       Strategy = "hybrid"
)

// Config configures a Detector at construction.
type Config struct {
	Strategy           Strategy
	Library            *pattern.Library
	ConfidenceThreshold float64 // default 0.7
	Optimizer          *Optimizer // optional; nil disables the cache
}

// Detector classifies a stream of messages into step-boundary decisions.
// It is not safe for concurrent use; its owner (normally a Buffer) must
// serialize calls to Analyze.
type Detector struct {
	strategy  Strategy
	library   *pattern.Library
	threshold float64
	optimizer *Optimizer

	currentType    step.Type
	currentTypeSet bool

	history []Decision
}

// New constructs a Detector. Pattern regexes and tool sets are compiled
// once, at Library construction time; the Detector only ever reads the
// compiled Library.
func New(cfg Config) *Detector {
	if cfg.Library == nil {
		cfg.Library = pattern.NewDefaultLibrary()
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyPatternBased
	}
	return &Detector{
		strategy:  cfg.Strategy,
		library:   cfg.Library,
		threshold: cfg.ConfidenceThreshold,
		optimizer: cfg.Optimizer,
	}
}

// Analyze classifies msg given the detector's current state and a bounded
// recent-message window, and advances the detector's state in place. It
// never panics: a misbehaving custom trigger/validator is swallowed inside
// pattern evaluation and treated as no-match.
func (d *Detector) Analyze(msg stepmsg.Message, recent []stepmsg.Message, toolsUsedSoFar []string) Decision {
	ctx := pattern.Context{
		Message:        msg,
		RecentMessages: recent,
		ToolsUsedSoFar: toolsUsedSoFar,
		ContentText:    msg.Text(),
		CurrentType:    d.currentType,
		CurrentTypeSet: d.currentTypeSet,
	}

	var decision Decision
	switch d.strategy {
	case StrategyHeuristic:
		decision = d.heuristic(ctx)
	case StrategyHybrid:
		decision = d.patternBased(ctx)
		if decision.Kind == DecisionStepContinue {
			if h := d.heuristic(ctx); h.Kind != DecisionStepContinue {
				decision = h
			}
		}
	default:
		decision = d.patternBased(ctx)
	}

	d.applyState(decision)
	d.recordHistory(decision)
	return decision
}

// patternBased implements the default strategy: evaluate all patterns,
// filter to those whose match confidence clears the threshold, pick the
// winner, and map it through the transition rule.
func (d *Detector) patternBased(ctx pattern.Context) Decision {
	if d.optimizer != nil {
		if cached, ok := d.optimizer.Get(ctx); ok {
			return cached
		}
	}

	match, ok := d.library.Best(ctx, d.threshold)
	if !ok {
		decision := Decision{Kind: DecisionStepContinue}
		if d.optimizer != nil {
			d.optimizer.Put(ctx, decision)
		}
		return decision
	}

	decision := transition(d.currentType, d.currentTypeSet, match.Pattern.Type, map[string]any{
		"pattern_id":       match.Pattern.ID,
		"match_confidence": match.MatchConfidence,
	})
	if d.optimizer != nil {
		d.optimizer.Put(ctx, decision)
	}
	return decision
}

// completionCuePattern recognizes textual completion cues for the
// heuristic strategy.
var completionCuePattern = regexp.MustCompile(`(?i)completed|finished|done|successfully|ready`)

// heuristic implements the fallback strategy: look for completion cues
// first, then infer a type from the tools used.
func (d *Detector) heuristic(ctx pattern.Context) Decision {
	if completionCuePattern.MatchString(ctx.ContentText) {
		return Decision{Kind: DecisionStepEnd}
	}

	typ, ok := inferTypeFromTools(ctx.Message.ToolNames())
	if !ok {
		return Decision{Kind: DecisionStepContinue}
	}
	return transition(d.currentType, d.currentTypeSet, typ, nil)
}

// inferTypeFromTools applies a fixed, deterministic priority policy: file
// mutation tools outrank shell tools, which outrank search tools, which
// outrank a bare read. A read_file used alone is treated as analysis; a
// read_file paired with a write tool is treated as file_operation, since by
// then the agent is clearly acting on what it read rather than just
// inspecting it.
func inferTypeFromTools(tools []string) (step.Type, bool) {
	if len(tools) == 0 {
		return "", false
	}
	set := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		set[t] = struct{}{}
	}
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := set[n]; ok {
				return true
			}
		}
		return false
	}

	switch {
	case has("write_file", "string_replace", "append_file", "delete_file"):
		return step.TypeFileOperation, true
	case has("shell_execute", "bash"):
		return step.TypeSystemCommand, true
	case has("grep", "file_search", "list_directory", "list_files"):
		return step.TypeExploration, true
	case has("read_file", "read_many_files"):
		return step.TypeAnalysis, true
	default:
		return "", false
	}
}

// transition implements the transition rule shared by every strategy.
func transition(currentType step.Type, currentTypeSet bool, candidate step.Type, meta map[string]any) Decision {
	if !currentTypeSet {
		return Decision{Kind: DecisionStepStart, Type: candidate, Metadata: meta}
	}
	if currentType == candidate {
		return Decision{Kind: DecisionStepContinue}
	}
	return Decision{Kind: DecisionStepBoundary, Type: candidate, Metadata: meta}
}

func (d *Detector) applyState(decision Decision) {
	switch decision.Kind {
	case DecisionStepStart, DecisionStepBoundary:
		d.currentType = decision.Type
		d.currentTypeSet = true
	case DecisionStepEnd:
		d.currentTypeSet = false
		d.currentType = ""
	}
}

func (d *Detector) recordHistory(decision Decision) {
	d.history = append(d.history, decision)
	if len(d.history) > maxDecisionHistory {
		d.history = d.history[len(d.history)-maxDecisionHistory:]
	}
}

// History returns the bounded (≤10) log of past decisions, oldest first.
func (d *Detector) History() []Decision {
	out := make([]Decision, len(d.history))
	copy(out, d.history)
	return out
}

// CurrentType returns the type of the step currently in progress, if any.
func (d *Detector) CurrentType() (step.Type, bool) {
	return d.currentType, d.currentTypeSet
}

// Reset clears the detector's in-progress step type, used after a forced
// flush so the next message starts a fresh step.
func (d *Detector) Reset() {
	d.currentType = ""
	d.currentTypeSet = false
}
