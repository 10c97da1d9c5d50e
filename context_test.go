// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContext_CancelSatisfiesInvariant5 covers invariant 5: after
// cancel(c), every fd owned by c has been closed, its
// close-notify has run, and get_done(c) reports CANCELED.
func TestContext_CancelSatisfiesInvariant5(t *testing.T) {
	ctx, err := New()
	require.NoError(t, err)

	od, err := ctx.reset(opKindDecryptVerify)
	require.NoError(t, err)

	closed := false
	fd := 90000 + int(ctx.Serial())
	require.NoError(t, ctx.fdtable.Insert(&FDEntry{
		FD:            fd,
		ContextSerial: ctx.Serial(),
		OnClose:       func() { closed = true },
	}))
	require.NoError(t, ctx.fdtable.Activate(fd))
	od.addFD(fd)

	ctx.Cancel(nil)

	assert.True(t, od.done.Load())
	assert.True(t, errors.Is(od.err, ErrCanceled))
	assert.True(t, closed, "close-notify must have run")
	assert.Nil(t, ctx.fdtable.Get(fd), "fd must no longer be registered")

	serial, status, opErr, found := ctx.fdtable.GetDone(ctx.Serial())
	require.True(t, found)
	assert.Equal(t, ctx.Serial(), serial)
	assert.Equal(t, "CANCELED", status)
	assert.True(t, errors.Is(opErr, ErrCanceled))
}

// TestContext_CancelWithReason preserves a caller-supplied reason instead
// of defaulting to ErrCanceled.
func TestContext_CancelWithReason(t *testing.T) {
	ctx, err := New()
	require.NoError(t, err)
	_, err = ctx.reset(opKindMisc)
	require.NoError(t, err)

	reason := errors.New("operator requested shutdown")
	ctx.Cancel(reason)

	_, _, opErr, found := ctx.fdtable.GetDone(ctx.Serial())
	require.True(t, found)
	assert.ErrorIs(t, opErr, ErrCanceled)
	assert.Contains(t, opErr.Error(), "operator requested shutdown")
}

// TestContext_ResetRejectsWhileInFlight covers the "operations do not
// nest" invariant.
func TestContext_ResetRejectsWhileInFlight(t *testing.T) {
	ctx, err := New()
	require.NoError(t, err)
	_, err = ctx.reset(opKindMisc)
	require.NoError(t, err)

	_, err = ctx.reset(opKindMisc)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
