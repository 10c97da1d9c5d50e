// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastState_Lifecycle(t *testing.T) {
	s := NewFastState()
	assert.Equal(t, StateIdle, s.Load())
	assert.False(t, s.IsActive())

	assert.True(t, s.TryTransition(StateIdle, StateActive))
	assert.True(t, s.IsActive())

	// A second Idle->Active transition must fail: the state is no longer
	// Idle, so the compare-and-swap does not match.
	assert.False(t, s.TryTransition(StateIdle, StateActive))

	assert.True(t, s.TransitionAny([]FDState{StateIdle, StateActive, StateClosing}, StateClosing))
	assert.False(t, s.IsTerminal())

	s.Store(StateClosed)
	assert.True(t, s.IsTerminal())
	assert.False(t, s.IsActive())
}

func TestFDState_String(t *testing.T) {
	cases := map[FDState]string{
		StateIdle:    "Idle",
		StateActive:  "Active",
		StateClosing: "Closing",
		StateClosed:  "Closed",
		FDState(99):  "Unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
