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

// Package pattern defines the declarative Pattern vocabulary the Detector
// matches messages against: triggers decide whether a pattern fires at all,
// validators decide whether it has enough evidence to win, and the two
// combine into a single match confidence.
package pattern

import (
	"regexp"

	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// Context is the evidence a Pattern is matched against: the message under
// consideration plus the accumulated state of the Step it might belong to.
type Context struct {
	Message        stepmsg.Message
	RecentMessages []stepmsg.Message // bounded window, most recent last
	ToolsUsedSoFar []string
	ContentText    string
	CurrentType    step.Type
	CurrentTypeSet bool // false when no Step is in progress
}

// Trigger is a closed sum type; exactly one of the non-zero fields is set.
// Any-of semantics: a Pattern is triggered if at least one Trigger matches.
type Trigger struct {
	kind triggerKind

	contentRegex *regexp.Regexp
	toolSet      map[string]struct{}
	sequence     []stepmsg.Kind
	custom       func(Context) bool
}

type triggerKind int

const (
	triggerContent triggerKind = iota
	triggerToolUsage
	triggerSequence
	triggerCustom
)

// MessageContentTrigger matches a message's textual content against re.
func MessageContentTrigger(re *regexp.Regexp) Trigger {
	return Trigger{kind: triggerContent, contentRegex: re}
}

// ToolUsageTrigger matches if any tool in tools is used by the message.
func ToolUsageTrigger(tools []string) Trigger {
	set := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		set[t] = struct{}{}
	}
	return Trigger{kind: triggerToolUsage, toolSet: set}
}

// MessageSequenceTrigger matches if the last len(kinds) messages (including
// the current one) equal kinds, in order.
func MessageSequenceTrigger(kinds []stepmsg.Kind) Trigger {
	seq := make([]stepmsg.Kind, len(kinds))
	copy(seq, kinds)
	return Trigger{kind: triggerSequence, sequence: seq}
}

// CustomTrigger wraps an escape-hatch predicate. fn must be total and
// side-effect-free; a panicking fn is treated by the evaluator as no-match.
func CustomTrigger(fn func(Context) bool) Trigger {
	return Trigger{kind: triggerCustom, custom: fn}
}

// Validator is a closed sum type; all-of semantics: a Pattern validates iff
// every Validator accepts.
type Validator struct {
	kind validatorKind

	contentRegex *regexp.Regexp
	minCount     *int
	maxCount     *int
	custom       func(Context) bool
}

type validatorKind int

const (
	validatorContentRegex validatorKind = iota
	validatorToolCount
	validatorMessageCount
	validatorCustom
)

// ContentRegexValidator requires the message content to match re.
func ContentRegexValidator(re *regexp.Regexp) Validator {
	return Validator{kind: validatorContentRegex, contentRegex: re}
}

// ToolCountValidator requires the number of distinct tools used so far to
// fall within [min, max]. A nil bound is unconstrained.
func ToolCountValidator(min, max *int) Validator {
	return Validator{kind: validatorToolCount, minCount: min, maxCount: max}
}

// MessageCountValidator requires the recent-message window length to fall
// within [min, max]. A nil bound is unconstrained.
func MessageCountValidator(min, max *int) Validator {
	return Validator{kind: validatorMessageCount, minCount: min, maxCount: max}
}

// CustomValidator wraps an escape-hatch predicate with the same no-match-on-
// panic contract as CustomTrigger.
func CustomValidator(fn func(Context) bool) Validator {
	return Validator{kind: validatorCustom, custom: fn}
}

// Pattern is a declarative recipe describing when a Step of a given Type
// begins and when it has accumulated enough evidence to be considered
// coherent.
type Pattern struct {
	ID         string
	Name       string
	Type       step.Type
	Triggers   []Trigger
	Validators []Validator
	Priority   int     // [0, 100]
	Confidence float64 // [0, 1], the pattern's own confidence ceiling
}
