// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// defaultPollTimeout bounds how long a single PollIO call blocks when no fd
// is ready and no deadline was requested, so a wait loop periodically
// rechecks its FDTable for contexts finished or canceled out from under it.
const defaultPollTimeout = 1 * time.Second

// WaitLoop drives one of the three wait-loop disciplines:
// a single process-wide instance serves WaitGlobal and Context.Wait, a
// Context may hold a private one, and an application may build its own over an FDTable it
// populates by hand. All three share this type; they differ only in which
// FDTable they poll and when Run returns.
//
// Built around the same poll-with-wake-pipe-interrupt shape used
// elsewhere in this package, stripped of any timer heap, microtask ring,
// or promise registry: those have no counterpart in a synchronous
// status-line protocol.
type WaitLoop struct {
	table  *FDTable
	poller FastPoller

	wakeFD      int
	wakeWriteFD int

	running atomic.Bool
	initMu  sync.Mutex
	inited  bool
	closeOnce sync.Once

	registered sync.Map // fd (int) -> struct{}, fds already added to poller
}

// NewWaitLoop creates a wait loop over table. table may be shared (the
// global discipline) or private to one Context.
func NewWaitLoop(table *FDTable) *WaitLoop {
	return &WaitLoop{table: table}
}

func (w *WaitLoop) init() error {
	w.initMu.Lock()
	defer w.initMu.Unlock()
	if w.inited {
		return nil
	}
	if err := w.poller.Init(); err != nil {
		return err
	}
	rfd, wfd, err := createWakeFd(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		_ = w.poller.Close()
		return err
	}
	w.wakeFD, w.wakeWriteFD = rfd, wfd
	if rfd >= 0 {
		if err := w.poller.RegisterFD(rfd, EventRead, func(IOEvents) {
			drainWakeFD(rfd)
		}); err != nil {
			_ = closeWakeFd(rfd, wfd)
			_ = w.poller.Close()
			return err
		}
	}
	w.inited = true
	return nil
}

func drainWakeFD(fd int) {
	var buf [8]byte
	for {
		if _, err := readFD(fd, buf[:]); err != nil {
			return
		}
	}
}

// Wake interrupts a blocked Run/Step, so it re-reads the FDTable's active
// set immediately instead of waiting out defaultPollTimeout. Safe to call
// from any goroutine, including concurrently with Close.
func (w *WaitLoop) Wake() error {
	if w.wakeWriteFD < 0 {
		return nil
	}
	var one [8]byte
	one[0] = 1
	_, err := writeFD(w.wakeWriteFD, one[:])
	return err
}

// syncPollerMembership registers newly-active fds with the platform poller
// and unregisters any the poller still knows about but the table no
// longer lists as active, in either StateClosing or StateClosed.
func (w *WaitLoop) syncPollerMembership() {
	seen := make(map[int]struct{})
	for _, entry := range w.table.Active() {
		seen[entry.FD] = struct{}{}
		if _, ok := w.registered.Load(entry.FD); ok {
			continue
		}
		e := entry
		if err := w.poller.RegisterFD(e.FD, e.Events, func(events IOEvents) {
			if e.OnIO != nil {
				e.OnIO(events)
			}
		}); err == nil {
			w.registered.Store(e.FD, struct{}{})
		}
	}
	w.registered.Range(func(key, _ any) bool {
		fd := key.(int)
		if _, active := seen[fd]; !active && fd != w.wakeFD {
			_ = w.poller.UnregisterFD(fd)
			w.registered.Delete(fd)
		}
		return true
	})
}

// Step runs a single poll iteration: register any newly active fds,
// block up to timeout for I/O (dispatching io-callbacks inline as the
// platform poller reports readiness), and drop fds the table no longer
// considers active.
func (w *WaitLoop) Step(timeout time.Duration) error {
	if err := w.init(); err != nil {
		return err
	}
	w.syncPollerMembership()

	timeoutMs := int(timeout / time.Millisecond)
	if timeout < 0 {
		timeoutMs = -1
	}
	_, err := w.poller.PollIO(timeoutMs)
	if err != nil {
		logWaitLoopError(0, err)
		return err
	}
	return nil
}

// Run blocks, calling Step in a loop with defaultPollTimeout, until either
// ctx is done or done(table) reports true (checked after every Step). It
// implements the "run until nothing left to wait for" behaviour common to
// wait_global/wait_private/wait_user: the caller supplies the termination
// predicate since callers disagree on what "nothing left" means
// (WaitGlobal: the whole table empty; Context.Wait: its operation
// marked done).
func (w *WaitLoop) Run(ctx context.Context, done func(*FDTable) bool) error {
	w.running.Store(true)
	defer w.running.Store(false)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if done != nil && done(w.table) {
			return nil
		}
		if err := w.Step(defaultPollTimeout); err != nil {
			return err
		}
	}
}

// Running reports whether Run is currently executing.
func (w *WaitLoop) Running() bool {
	return w.running.Load()
}

// Close releases the loop's poller and wakeup descriptors. Safe to call
// more than once.
func (w *WaitLoop) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.wakeFD >= 0 {
			_ = w.poller.UnregisterFD(w.wakeFD)
		}
		err = w.poller.Close()
		_ = closeWakeFd(w.wakeFD, w.wakeWriteFD)
	})
	return err
}

// --- global wait loop ---

var (
	globalTable    = NewFDTable()
	globalLoopOnce sync.Once
	globalLoop     *WaitLoop
)

// GlobalFDTable returns the process-wide FDTable shared by every Context.
func GlobalFDTable() *FDTable {
	return globalTable
}

func globalWaitLoop() *WaitLoop {
	globalLoopOnce.Do(func() {
		globalLoop = NewWaitLoop(globalTable)
	})
	return globalLoop
}

// WaitGlobal runs the global wait-loop discipline: it polls every
// context's fds and returns once the table is empty (all registered
// operations finished) or ctx is canceled.
func WaitGlobal(ctx context.Context) error {
	return globalWaitLoop().Run(ctx, func(t *FDTable) bool {
		return t.Len() == 0
	})
}
