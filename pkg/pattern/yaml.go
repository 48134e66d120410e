// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pattern

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/agentstep/pipeline/internal/fsext"
	"github.com/agentstep/pipeline/pkg/perr"
	"github.com/agentstep/pipeline/pkg/step"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// fileSet is the on-disk shape of a pattern set. Custom triggers/validators
// cannot be expressed in YAML; a pattern that needs one must be installed
// programmatically via NewLibrary.
type fileSet struct {
	Patterns []filePattern `yaml:"patterns"`
}

type filePattern struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Type       string          `yaml:"type"`
	Priority   int             `yaml:"priority"`
	Confidence float64         `yaml:"confidence"`
	Triggers   fileTriggerSet  `yaml:"triggers"`
	Validators fileValidatorSet `yaml:"validators"`
}

type fileTriggerSet struct {
	ContentRegex    []string `yaml:"content_regex"`
	ToolUsage       []string `yaml:"tool_usage"`
	MessageSequence []string `yaml:"message_sequence"`
}

type fileValidatorSet struct {
	ContentRegex []string `yaml:"content_regex"`
	ToolCount    *rangeSpec `yaml:"tool_count"`
	MessageCount *rangeSpec `yaml:"message_count"`
}

type rangeSpec struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

// LoadFile reads a YAML pattern set from path and compiles it into a
// []Pattern, ready for NewLibrary or Library.Reload.
func LoadFile(path string) ([]Pattern, error) {
	if !fsext.Exists(path) {
		return nil, perr.NewConfigError("pattern: file %q does not exist", path)
	}
	if fsext.IsDir(path) {
		return nil, perr.NewConfigError("pattern: %q is a directory, not a pattern file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pattern: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses YAML pattern-set content into a []Pattern.
func LoadBytes(data []byte) ([]Pattern, error) {
	var fs fileSet
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("pattern: parse yaml: %w", err)
	}

	out := make([]Pattern, 0, len(fs.Patterns))
	for _, fp := range fs.Patterns {
		p, err := compilePattern(fp)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", fp.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func compilePattern(fp filePattern) (Pattern, error) {
	p := Pattern{
		ID:         fp.ID,
		Name:       fp.Name,
		Type:       step.Type(fp.Type),
		Priority:   fp.Priority,
		Confidence: fp.Confidence,
	}

	for _, pat := range fp.Triggers.ContentRegex {
		re, err := regexp.Compile(pat)
		if err != nil {
			return Pattern{}, fmt.Errorf("trigger content_regex %q: %w", pat, err)
		}
		p.Triggers = append(p.Triggers, MessageContentTrigger(re))
	}
	if len(fp.Triggers.ToolUsage) > 0 {
		p.Triggers = append(p.Triggers, ToolUsageTrigger(fp.Triggers.ToolUsage))
	}
	if len(fp.Triggers.MessageSequence) > 0 {
		p.Triggers = append(p.Triggers, MessageSequenceTrigger(toKinds(fp.Triggers.MessageSequence)))
	}

	for _, pat := range fp.Validators.ContentRegex {
		re, err := regexp.Compile(pat)
		if err != nil {
			return Pattern{}, fmt.Errorf("validator content_regex %q: %w", pat, err)
		}
		p.Validators = append(p.Validators, ContentRegexValidator(re))
	}
	if fp.Validators.ToolCount != nil {
		p.Validators = append(p.Validators, ToolCountValidator(fp.Validators.ToolCount.Min, fp.Validators.ToolCount.Max))
	}
	if fp.Validators.MessageCount != nil {
		p.Validators = append(p.Validators, MessageCountValidator(fp.Validators.MessageCount.Min, fp.Validators.MessageCount.Max))
	}

	return p, nil
}

func toKinds(raw []string) []stepmsg.Kind {
	out := make([]stepmsg.Kind, len(raw))
	for i, r := range raw {
		out[i] = stepmsg.Kind(r)
	}
	return out
}
