// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"sync"
)

// CancelSignal communicates the cancellation of a Context's in-flight
// operation to the goroutines cooperating on it (the wait loop dispatching
// its io-callbacks, any helper goroutines feeding its data sources).
//
// This follows the shape of the W3C DOM AbortController/AbortSignal
// pattern: https://dom.spec.whatwg.org/#interface-abortsignal
//
// CancelSignal is safe for concurrent access from multiple goroutines; all
// state mutations are protected by an internal mutex.
type CancelSignal struct { //nolint:govet // betteralign:ignore
	handlers []func(reason error)
	reason   error
	mu       sync.RWMutex
	canceled bool
}

// newCancelSignal creates a new CancelSignal. Signals are created through
// a CancelController.
func newCancelSignal() *CancelSignal {
	return &CancelSignal{
		handlers: make([]func(reason error), 0),
	}
}

// Canceled reports whether the signal has fired.
func (s *CancelSignal) Canceled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canceled
}

// Reason returns the cancellation cause, or nil if the signal has not
// fired.
func (s *CancelSignal) Reason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnCancel registers a callback invoked when the signal fires. If the
// signal has already fired, the callback runs immediately with the
// recorded reason.
func (s *CancelSignal) OnCancel(handler func(reason error)) {
	if handler == nil {
		return
	}

	s.mu.Lock()
	if s.canceled {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}

	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// ThrowIfCanceled returns ErrCanceled (wrapped with the recorded reason,
// if any) when the signal has fired, else nil.
func (s *CancelSignal) ThrowIfCanceled() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.canceled {
		if s.reason != nil {
			return WrapError(s.reason.Error(), ErrCanceled)
		}
		return ErrCanceled
	}
	return nil
}

// cancel is called by CancelController to fire the signal.
func (s *CancelSignal) cancel(reason error) {
	s.mu.Lock()

	if s.canceled {
		s.mu.Unlock()
		return
	}

	s.canceled = true
	s.reason = reason

	handlers := make([]func(reason error), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(reason)
	}
}

// CancelController is the counterpart of CancelSignal that fires it. Each
// Context owns exactly one, created at reset and fired by Context.Cancel
// (see context.go).
type CancelController struct {
	signal *CancelSignal
}

// NewCancelController creates a controller with a fresh, unfired signal.
func NewCancelController() *CancelController {
	return &CancelController{
		signal: newCancelSignal(),
	}
}

// Signal returns the controller's CancelSignal.
func (c *CancelController) Signal() *CancelSignal {
	return c.signal
}

// Cancel fires the controller's signal with the given reason. If reason is
// nil, ErrCanceled is used. Calling Cancel more than once has no further
// effect; the signal keeps its original reason.
func (c *CancelController) Cancel(reason error) {
	if reason == nil {
		reason = ErrCanceled
	}
	c.signal.cancel(reason)
}

// CancelAny returns a signal that fires as soon as any of signals fires,
// carrying that signal's reason. An empty input never fires.
func CancelAny(signals []*CancelSignal) *CancelSignal {
	composite := newCancelSignal()

	if len(signals) == 0 {
		return composite
	}

	var cancelOnce sync.Once

	for _, sig := range signals {
		if sig == nil {
			continue
		}
		if sig.Canceled() {
			composite.cancel(sig.Reason())
			return composite
		}
	}

	for _, sig := range signals {
		if sig == nil {
			continue
		}
		s := sig
		s.OnCancel(func(reason error) {
			cancelOnce.Do(func() {
				composite.cancel(reason)
			})
		})
	}

	return composite
}
