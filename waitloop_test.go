// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWaitLoop_RunReturnsWhenDone covers the private-loop discipline's
// early-exit path: Run must not block at all once the caller's completion
// predicate is already satisfied, regardless of poller state.
func TestWaitLoop_RunReturnsWhenDone(t *testing.T) {
	table := NewFDTable()
	loop := NewWaitLoop(table)

	err := loop.Run(context.Background(), func(*FDTable) bool { return true })
	require.NoError(t, err)
	assert.False(t, loop.Running())
}

// TestWaitLoop_RunRespectsContextCancellation covers cancellation
// preempting the predicate check, the common cancellation
// semantics every wait loop shares.
func TestWaitLoop_RunRespectsContextCancellation(t *testing.T) {
	table := NewFDTable()
	loop := NewWaitLoop(table)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx, func(*FDTable) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitGlobal_EmptyTableReturnsImmediately(t *testing.T) {
	for GlobalFDTable().Len() != 0 {
		t.Fatal("global FDTable not empty at test start; leaked fd from another test")
	}
	err := WaitGlobal(context.Background())
	assert.NoError(t, err)
}
