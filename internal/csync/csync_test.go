// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package csync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapGetOrSet(t *testing.T) {
	m := NewMap[string, int]()

	v, existed := m.GetOrSet("a", 1)
	assert.False(t, existed)
	assert.Equal(t, 1, v)

	v, existed = m.GetOrSet("a", 2)
	assert.True(t, existed)
	assert.Equal(t, 1, v, "GetOrSet must not overwrite an existing value")

	assert.Equal(t, 1, m.Len())
}

func TestMapLen(t *testing.T) {
	m := NewMap[int, string]()
	assert.Equal(t, 0, m.Len())
	m.Set(1, "a")
	m.Set(2, "b")
	assert.Equal(t, 2, m.Len())
	m.Delete(1)
	assert.Equal(t, 1, m.Len())
}

func TestSliceBasics(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	s.Append(2)
	s.Append(3)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{1, 2, 3}, s.Items())

	v, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = s.Get(10)
	assert.False(t, ok)
}
