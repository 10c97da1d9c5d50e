// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var contextSerialCounter atomic.Int64

// Context represents one sequential conversation with a backend engine
// subprocess: its protocol, its configuration flags, and - while an
// operation is running - the op-data slot and FDTable rows that operation
// owns.
//
// A Context is not safe for concurrent use by multiple goroutines while an
// operation is in flight; callers serialize their own use exactly as the
// engine subprocess itself is strictly request/response.
type Context struct {
	serial int64
	opts   *contextOptions

	mu      sync.Mutex
	opData  *opData
	cancel  *CancelController
	fdtable *FDTable
	private *WaitLoop

	signers []*Key
}

// New constructs a Context. Protocol defaults to OpenPGP; see the
// With* functions for every other configurable attribute.
func New(opts ...ContextOption) (*Context, error) {
	cfg, err := resolveContextOptions(opts)
	if err != nil {
		return nil, WrapError("resolve context options", err)
	}
	lockGlobalFlags()
	ctx := &Context{
		serial:  contextSerialCounter.Add(1),
		opts:    cfg,
		fdtable: globalTable,
	}
	SDebug("context", "context created", map[string]interface{}{"serial": ctx.serial, "protocol": cfg.protocol.String()})
	return ctx, nil
}

// Serial is the process-unique identifier used to tag this context's
// FDTable rows and log entries.
func (c *Context) Serial() int64 { return c.serial }

// Protocol returns the engine protocol this context drives.
func (c *Context) Protocol() Protocol { return c.opts.protocol }

// SetArmor toggles ASCII-armored output for subsequent operations.
func (c *Context) SetArmor(enabled bool) { c.opts.armor = enabled }

// Armor reports whether ASCII armor is enabled.
func (c *Context) Armor() bool { return c.opts.armor }

// SetTextmode toggles canonical text mode for subsequent operations.
func (c *Context) SetTextmode(enabled bool) { c.opts.textmode = enabled }

// Textmode reports whether canonical text mode is enabled.
func (c *Context) Textmode() bool { return c.opts.textmode }

// SetKeylistMode replaces the keylist-mode bitset used by subsequent
// keylist operations.
func (c *Context) SetKeylistMode(mode KeylistMode) { c.opts.keylistMode = mode }

// KeylistMode returns the current keylist-mode bitset.
func (c *Context) KeylistMode() KeylistMode { return c.opts.keylistMode }

// SetPinentryMode replaces how subsequent operations source a passphrase.
func (c *Context) SetPinentryMode(mode PinentryMode) { c.opts.pinentryMode = mode }

// PinentryMode returns the current pinentry mode.
func (c *Context) PinentryMode() PinentryMode { return c.opts.pinentryMode }

// AddSigner appends key to the list of signers used by subsequent sign/
// encrypt-and-sign operations.
func (c *Context) AddSigner(key *Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signers = append(c.signers, key)
}

// ClearSigners empties the signer list.
func (c *Context) ClearSigners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signers = nil
}

// Signers returns a copy of the current signer list.
func (c *Context) Signers() []*Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Key, len(c.signers))
	copy(out, c.signers)
	return out
}

// AddSigNotation appends a notation to the context-level list attached to
// every signature made by subsequent sign operations. Per the source's
// sig-notation.c, a notation with a name is always human-readable - only
// an unnamed one (a bare policy URL) may carry binary data - so a non-empty
// name unconditionally forces HumanReadable on, regardless of what the
// caller passed.
func (c *Context) AddSigNotation(name, value string, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.sigNotations = append(c.opts.sigNotations, &SigNotation{
		Name:          name,
		Value:         value,
		HumanReadable: name != "",
		IsCritical:    critical,
	})
}

// ClearSigNotations empties the context-level notation list.
func (c *Context) ClearSigNotations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.sigNotations = nil
}

// SigNotations returns a copy of the current context-level notation list.
func (c *Context) SigNotations() []*SigNotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*SigNotation, len(c.opts.sigNotations))
	copy(out, c.opts.sigNotations)
	return out
}

// reset prepares the context for a new operation: it rejects a reset
// while one is already in flight (ErrInvalidArgument - the same
// "operations do not nest" invariant libgpgme enforces), allocates a
// fresh op-data slot and CancelController. It does not touch the FDTable.
func (c *Context) reset(kind opKind) (*opData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opData != nil && !c.opData.done.Load() {
		return nil, WrapError("operation already in progress", ErrInvalidArgument)
	}

	od := newOpData(c.serial, kind)
	if kind == opKindSign {
		od.signersWant = len(c.signers)
	}
	c.opData = od
	c.cancel = NewCancelController()
	return od, nil
}

// release detaches the op-data slot's FDTable rows once an operation has
// fully completed (SUCCESS/FAILURE/ERROR observed, or the wait loop
// reports EOF). It is idempotent.
func (c *Context) release() {
	c.mu.Lock()
	od := c.opData
	c.mu.Unlock()
	if od == nil {
		return
	}
	od.done.Store(true)
	c.fdtable.SetDone(od.serial, doneStatusFor(od.err), od.err)
	for _, fd := range od.fds {
		_ = c.fdtable.Remove(fd)
	}
}

func doneStatusFor(err error) string {
	if err == nil {
		return "DONE"
	}
	return "ERROR"
}

// Cancel requests cancellation of the in-flight operation, if any. It
// fires the CancelController's signal, then immediately enforces invariant 5:
// every fd owned by the operation is removed (running its
// close-notify), and the FDTable's done record for this context is set to
// CANCELED, so a concurrent Wait observes it within one iteration rather
// than only at the next status-line boundary.
func (c *Context) Cancel(reason error) {
	c.mu.Lock()
	cc := c.cancel
	od := c.opData
	c.mu.Unlock()

	if reason == nil {
		reason = ErrCanceled
	}
	if cc != nil {
		cc.Cancel(reason)
	}
	if od == nil || od.done.Load() {
		return
	}

	cancelErr := reason
	if !errors.Is(reason, ErrCanceled) {
		cancelErr = WrapError(reason.Error(), ErrCanceled)
	}
	od.fail(cancelErr)
	c.fdtable.SetDone(od.serial, "CANCELED", cancelErr)
	for _, fd := range od.fds {
		_ = c.fdtable.Remove(fd)
	}
	od.done.Store(true)
}

// Wait blocks until the in-flight operation completes or ctx is done,
// dispatching status-line I/O through the context's private wait loop if
// one is set, else the process-wide global one; nothing in this package
// sets a private loop, so Wait always runs the global loop. Once the
// operation is observed done, Wait consults the FDTable's done record
// (set by release/Cancel) and returns its recorded error - CANCELED from
// Cancel, or the operation's own terminal error - rather than always nil.
func (c *Context) Wait(ctx context.Context) error {
	c.mu.Lock()
	od := c.opData
	loop := c.private
	c.mu.Unlock()

	if od == nil {
		return WrapError("no operation in progress", ErrInvalidArgument)
	}

	var runErr error
	if loop == nil {
		runErr = globalWaitLoop().Run(ctx, func(*FDTable) bool {
			return od.done.Load()
		})
	} else {
		runErr = loop.Run(ctx, func(*FDTable) bool {
			return od.done.Load()
		})
	}
	if runErr != nil {
		return runErr
	}

	if _, _, opErr, found := c.fdtable.GetDone(od.serial); found && opErr != nil {
		return opErr
	}
	return od.err
}

// String renders a short identifying label for logging/diagnostics.
func (c *Context) String() string {
	return fmt.Sprintf("Context{serial=%d protocol=%s}", c.serial, c.opts.protocol)
}
