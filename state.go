package cryptengine

import (
	"sync/atomic"
)

// FDState is the lifecycle state of a single FDTable entry.
//
// State Machine:
//
//	StateIdle (0) → StateActive (1)     [Activate / SetActive]
//	StateActive (1) → StateIdle (0)     [SetDone]
//	StateIdle/StateActive → StateClosing (2)  [Remove]
//	StateClosing (2) → StateClosed (3)  [close-notify callback has run]
//	StateClosed (3) → (terminal)
//
// Use TryTransition (CAS) for the Idle→Active and Active→Idle edges,
// which race against a concurrent wait-loop iteration; Store is reserved
// for the irreversible Closed transition, which Remove makes after the
// entry has left the FDTable.
type FDState uint64

const (
	// StateIdle is the zero value: the entry has been allocated but is not
	// yet registered with any wait loop.
	StateIdle FDState = 0
	// StateActive indicates the fd is registered and its io-callback may be
	// invoked by a wait loop.
	StateActive FDState = 1
	// StateClosing indicates the fd has been marked for removal but its
	// close-notify callback has not yet run.
	StateClosing FDState = 2
	// StateClosed is terminal: the entry has been evicted from the table
	// and its close-notify callback, if any, has completed.
	StateClosed FDState = 3
)

func (s FDState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine guarding an FDTable entry's
// lifecycle, so a wait loop can observe and transition it without taking
// the table's mutex on every poll iteration.
type FastState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

// NewFastState creates a new state machine in the Idle state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateIdle))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() FDState {
	return FDState(s.v.Load())
}

// Store atomically stores a new state. Reserved for the Closed transition.
func (s *FastState) Store(state FDState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to
// another, returning whether it succeeded.
func (s *FastState) TryTransition(from, to FDState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts a transition from any of validFrom to to.
func (s *FastState) TransitionAny(validFrom []FDState, to FDState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the entry has reached StateClosed.
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateClosed
}

// IsActive reports whether a wait loop may currently dispatch this entry's
// io-callback.
func (s *FastState) IsActive() bool {
	return s.Load() == StateActive
}
