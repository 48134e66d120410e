// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package perr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NewResourceError("buffer full")
	assert.True(t, errors.Is(err, Sentinel(KindResource)))
	assert.False(t, errors.Is(err, Sentinel(KindConfig)))
}

func TestKindOfExtractsWrappedError(t *testing.T) {
	base := NewHandlerError(fmt.Errorf("boom"), "review handler failed")
	wrapped := fmt.Errorf("pipeline: %w", base)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindHandler, kind)
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewCorruptionError(cause, "load failed")
	assert.ErrorIs(t, err, cause)
}

func TestKindOfFalseForUnrelatedError(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	assert.False(t, ok)
}
