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

// Package perr defines the pipeline's error taxonomy: a small set of kinds,
// not a proliferation of type names, each wrapping an underlying cause so
// callers can still errors.Is/errors.As through to it.
package perr

import (
	"errors"
	"fmt"
)

// Kind tags a pipeline error with its place in the error taxonomy, so a
// caller can branch on what happened without string-matching messages.
type Kind string

const (
	// KindConfig is an invalid pattern, threshold, priority, or missing
	// required handler. Surfaced synchronously at construction; fatal.
	KindConfig Kind = "config_error"
	// KindResource is a tripped buffer size or memory ceiling. Recovered
	// locally: the Buffer force-flushes and the pipeline continues.
	KindResource Kind = "resource_error"
	// KindDetection is a custom trigger/validator failure. Swallowed at
	// the evaluator and treated as no-match.
	KindDetection Kind = "detection_error"
	// KindHandler is a review, intervention, emission, or persistence
	// handler that raised or returned an error.
	KindHandler Kind = "handler_error"
	// KindTimeout is a step-inactivity, review, or decision timeout. Not
	// caller-visible as an error; it becomes a status on the Step.
	KindTimeout Kind = "timeout_error"
	// KindProtocol is an invalid control decision, or a resume without a
	// pending Step.
	KindProtocol Kind = "protocol_error"
	// KindCorruption is a persistence load that failed integrity checks.
	KindCorruption Kind = "corruption_error"
)

// Error is the pipeline's error type: a Kind plus a message and optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind (or with an
// empty Kind), so callers can write errors.Is(err,
// perr.Sentinel(perr.KindResource)) style checks, or compare kinds directly
// after an errors.As.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == "" || other.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewConfigError builds a KindConfig error.
func NewConfigError(format string, args ...any) *Error { return newf(KindConfig, format, args...) }

// NewResourceError builds a KindResource error.
func NewResourceError(format string, args ...any) *Error { return newf(KindResource, format, args...) }

// NewDetectionError builds a KindDetection error.
func NewDetectionError(format string, args ...any) *Error { return newf(KindDetection, format, args...) }

// NewHandlerError builds a KindHandler error wrapping cause.
func NewHandlerError(cause error, format string, args ...any) *Error {
	e := newf(KindHandler, format, args...)
	e.Cause = cause
	return e
}

// NewTimeoutError builds a KindTimeout error.
func NewTimeoutError(format string, args ...any) *Error { return newf(KindTimeout, format, args...) }

// NewProtocolError builds a KindProtocol error.
func NewProtocolError(format string, args ...any) *Error { return newf(KindProtocol, format, args...) }

// NewCorruptionError builds a KindCorruption error wrapping cause.
func NewCorruptionError(cause error, format string, args ...any) *Error {
	e := newf(KindCorruption, format, args...)
	e.Cause = cause
	return e
}

// KindOf extracts the Kind from err, if err is or wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// sentinelOf returns an *Error usable as an errors.Is target for kind,
// e.g. errors.Is(err, perr.Sentinel(perr.KindResource)).
func sentinelOf(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Sentinel returns a value suitable as the target of errors.Is to test
// whether err belongs to kind, regardless of message or cause.
func Sentinel(kind Kind) error {
	return sentinelOf(kind)
}
