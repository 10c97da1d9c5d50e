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

// TestFDTable_InsertDuplicate covers invariant 4: insert(f)
// then insert(f) returns DUP_KEY; insert(f), remove(f), insert(f) succeeds.
func TestFDTable_InsertDuplicate(t *testing.T) {
	table := NewFDTable()

	require.NoError(t, table.Insert(&FDEntry{FD: 7, ContextSerial: 1}))

	err := table.Insert(&FDEntry{FD: 7, ContextSerial: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))

	require.NoError(t, table.Remove(7))
	assert.NoError(t, table.Insert(&FDEntry{FD: 7, ContextSerial: 3}))
}

// TestFDTable_ActiveDoneMutuallyExclusive covers invariant 2: (active,
// done) is never (1, 1) — Remove always leaves an entry in StateClosed,
// never lets it remain Active.
func TestFDTable_ActiveDoneMutuallyExclusive(t *testing.T) {
	table := NewFDTable()
	entry := &FDEntry{FD: 3, ContextSerial: 1}
	require.NoError(t, table.Insert(entry))
	require.NoError(t, table.Activate(3))
	assert.True(t, entry.State().IsActive())

	require.NoError(t, table.Remove(3))
	assert.False(t, entry.State().IsActive())
	assert.True(t, entry.State().IsTerminal())
}

func TestFDTable_ActivateUnknownFD(t *testing.T) {
	table := NewFDTable()
	err := table.Activate(99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFDTable_ForContextAndSweep(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 10}))
	require.NoError(t, table.Insert(&FDEntry{FD: 2, ContextSerial: 10}))
	require.NoError(t, table.Insert(&FDEntry{FD: 3, ContextSerial: 20}))

	entries := table.ForContext(10)
	assert.Len(t, entries, 2)

	require.NoError(t, table.Remove(1))
	require.NoError(t, table.Remove(2))
	table.Sweep(10)
	assert.Equal(t, 1, table.Len())
}

func TestFDTable_OnCloseCalledOnRemove(t *testing.T) {
	table := NewFDTable()
	closed := false
	require.NoError(t, table.Insert(&FDEntry{
		FD:            5,
		ContextSerial: 1,
		OnClose:       func() { closed = true },
	}))
	require.NoError(t, table.Remove(5))
	assert.True(t, closed)
}

// TestFDTable_AddCloseNotifyDuplicate covers the DUP_VALUE failure mode of
// add_close_notify.
func TestFDTable_AddCloseNotifyDuplicate(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 1}))

	require.NoError(t, table.AddCloseNotify(1, func() {}))
	err := table.AddCloseNotify(1, func() {})
	assert.True(t, errors.Is(err, ErrDuplicateValue))

	err = table.AddCloseNotify(99, func() {})
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestFDTable_SetIOCB covers set_io_cb's owner cross-check and
// set/remove-twice failure modes.
func TestFDTable_SetIOCB(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 7}))

	require.NoError(t, table.SetIOCB(1, 7, DirectionRead, func(IOEvents) error { return nil }))

	err := table.SetIOCB(1, 7, DirectionRead, func(IOEvents) error { return nil })
	assert.True(t, errors.Is(err, ErrDuplicateValue), "setting a second callback must fail")

	err = table.SetIOCB(1, 99, DirectionRead, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument), "removing with the wrong owner must fail")

	require.NoError(t, table.SetIOCB(1, 7, DirectionRead, nil))
	err = table.SetIOCB(1, 7, DirectionRead, nil)
	assert.True(t, errors.Is(err, ErrNotFound), "removing twice must fail")
}

// TestFDTable_SetActiveClearsDone covers set_active(owner): flips idle
// entries with a callback to active and clears any stale done flag.
func TestFDTable_SetActiveClearsDone(t *testing.T) {
	table := NewFDTable()
	entry := &FDEntry{FD: 1, ContextSerial: 7}
	require.NoError(t, table.Insert(entry))
	require.NoError(t, table.SetIOCB(1, 7, DirectionRead, func(IOEvents) error { return nil }))

	table.SetActive(7)
	assert.True(t, entry.State().IsActive())

	table.SetDone(7, "DONE", nil)
	table.SetActive(7)
	assert.False(t, entry.done, "SetActive must clear a stale done flag")
}

// TestFDTable_SetDoneGetDone covers set_done/get_done: the owner-level
// record persists across fd removal, matching invariant 5's requirement
// that a canceled context's fds can be fully closed while get_done still
// reports CANCELED.
func TestFDTable_SetDoneGetDone(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 7}))
	require.NoError(t, table.Activate(1))

	table.SetDone(7, "CANCELED", ErrCanceled)
	require.NoError(t, table.Remove(1))

	serial, status, opErr, found := table.GetDone(7)
	require.True(t, found)
	assert.Equal(t, int64(7), serial)
	assert.Equal(t, "CANCELED", status)
	assert.True(t, errors.Is(opErr, ErrCanceled))

	_, _, _, found = table.GetDone(7)
	assert.False(t, found, "GetDone must pop the record, not return it twice")
}

// TestFDTable_IOCBCount covers io_cb_count(owner), used to decide when to
// emit DONE.
func TestFDTable_IOCBCount(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 1}))
	require.NoError(t, table.Insert(&FDEntry{FD: 2, ContextSerial: 1}))
	require.NoError(t, table.Insert(&FDEntry{FD: 3, ContextSerial: 2}))

	assert.Equal(t, 0, table.IOCBCount(1))
	require.NoError(t, table.SetIOCB(1, 1, DirectionRead, func(IOEvents) error { return nil }))
	assert.Equal(t, 1, table.IOCBCount(1))
	assert.Equal(t, 0, table.IOCBCount(2))
}

// TestFDTable_RunIOCBs covers run_io_cbs: it drains signaled entries for
// owner in fd order, stopping at the first callback error.
func TestFDTable_RunIOCBs(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 1}))
	require.NoError(t, table.Insert(&FDEntry{FD: 2, ContextSerial: 1}))

	var ran []int
	require.NoError(t, table.SetIOCB(1, 1, DirectionRead, func(IOEvents) error {
		ran = append(ran, 1)
		return nil
	}))
	require.NoError(t, table.SetIOCB(2, 1, DirectionRead, func(IOEvents) error {
		ran = append(ran, 2)
		return ErrGeneral
	}))
	table.markSignaled(1)
	table.markSignaled(2)

	err, serial := table.RunIOCBs(1)
	assert.True(t, errors.Is(err, ErrGeneral))
	assert.Equal(t, int64(1), serial)
	assert.ElementsMatch(t, []int{1, 2}, ran)
}

// TestFDTable_GetFDsSelectors covers get_fds' direction/signaled filters
// and SelectClear's side effect.
func TestFDTable_GetFDsSelectors(t *testing.T) {
	table := NewFDTable()
	require.NoError(t, table.Insert(&FDEntry{FD: 1, ContextSerial: 1}))
	require.NoError(t, table.SetIOCB(1, 1, DirectionRead, func(IOEvents) error { return nil }))
	table.markSignaled(1)

	fds := table.GetFDs(1, SelectForRead|SelectSignaled)
	require.Len(t, fds, 1)
	assert.True(t, fds[0].ForRead)
	assert.True(t, fds[0].Signaled)

	fds = table.GetFDs(1, SelectForWrite)
	assert.Empty(t, fds)

	fds = table.GetFDs(1, SelectSignaled|SelectClear)
	require.Len(t, fds, 1)
	fds = table.GetFDs(1, SelectSignaled)
	assert.Empty(t, fds, "SelectClear must clear the signaled bit")
}
