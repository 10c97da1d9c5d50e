package cryptengine

import (
	"sync"
)

// FDEntry is one row of an FDTable: a pipe end a wait loop polls, the
// callback it dispatches to on readiness, and the callback run once the
// entry is finally removed.
type FDEntry struct {
	FD            int
	ContextSerial int64
	Events        IOEvents
	state         *FastState

	// Direction records whether this fd is watched for reading or writing,
	// so no fd is ever registered for both at once (invariant
	// 3). Set by SetIOCB.
	Direction IODirection

	// OnIO is invoked inline by a WaitLoop's platform poller when the fd is
	// readable/writable. This is the direct-dispatch path used by the
	// global/private wait-loop discipline (waitloop.go); it coexists with,
	// but is separate from, the signaled/RunIOCBs path below, which serves
	// the third discipline: an application polling an
	// FDTable it populates and drains by hand (e.g. its own select loop),
	// via SetIOCB/SetActive/GetFDs/RunIOCBs rather than a WaitLoop.
	OnIO func(events IOEvents)
	// OnClose is invoked exactly once, while the entry is in StateClosing
	// and before it is stored as StateClosed, whether it was removed by the engine
	// signalling EOF or by the owning Context being reset/released.
	OnClose func()

	// ioCB is the manual-loop callback registered via SetIOCB, distinct
	// from OnIO; RunIOCBs drains entries whose signaled bit is set by
	// invoking this. owner is the context serial passed to SetIOCB, cross-
	// checked on removal.
	ioCB      func(events IOEvents) error
	ioCBOwner int64

	signaled bool
	done     bool
}

// State returns the entry's current lifecycle state.
func (e *FDEntry) State() FDState {
	return e.state.Load()
}

// FDInfo is one row of the snapshot GetFDs returns: an fd together with its
// watched direction and whether it is currently signaled.
type FDInfo struct {
	FD       int
	ForRead  bool
	ForWrite bool
	Signaled bool
}

// FDSelector is a bitset of GetFDs filters, matching the
// ACTIVE/DONE/FOR_READ/FOR_WRITE/SIGNALED/NOT_SIGNALED/CLEAR flags.
type FDSelector uint

const (
	SelectActive FDSelector = 1 << iota
	SelectDone
	SelectForRead
	SelectForWrite
	SelectSignaled
	SelectNotSignaled
	// SelectClear additionally clears each returned entry's signaled bit as
	// it is copied out.
	SelectClear
)

// doneRecord is the owner-level completion status recorded by SetDone and
// consumed by GetDone. Kept independent of FDEntry rows so GetDone still
// answers correctly after Remove has already evicted every fd the owner
// had (invariant 5: cancel closes every owned fd yet get_done
// still reports CANCELED).
type doneRecord struct {
	status string
	opErr  error
}

// FDTable is the process-wide table of file descriptors belonging to
// in-flight contexts, keyed by fd. A wait loop (global, private, or
// application-supplied) polls it to find what to watch and whom to
// notify; Context.release and Context.Cancel remove an operation's rows
// as it finishes.
//
// Locking follows a single coarse mutex policy: FDTable operations are
// infrequent relative to io-callback dispatch, so a single RWMutex is
// simpler and cheap enough, with a narrower sweepMu lock reserved for a
// separate maintenance pass.
type FDTable struct {
	mu   sync.RWMutex
	rows map[int]*FDEntry

	// closeNotify tracks which fds already have a close-notify registered,
	// so AddCloseNotify can reject a second registration with
	// ErrDuplicateValue.
	closeNotify map[int]bool

	// done holds the owner-level completion record set by SetDone and
	// consumed by GetDone, surviving fd removal.
	done map[int64]*doneRecord

	// sweepMu serializes Sweep passes, so a wait loop's periodic dead-entry
	// collection never runs concurrently with itself across goroutines
	// (global and private loops can share one FDTable).
	sweepMu sync.Mutex
}

// NewFDTable creates an empty table.
func NewFDTable() *FDTable {
	return &FDTable{
		rows:        make(map[int]*FDEntry),
		closeNotify: make(map[int]bool),
		done:        make(map[int64]*doneRecord),
	}
}

// Insert adds fd to the table in StateIdle. It returns ErrDuplicateKey if
// fd is already present - the FDT invariant that an fd may
// be registered at most once at a time.
func (t *FDTable) Insert(entry *FDEntry) error {
	if entry == nil || entry.FD < 0 {
		return ErrInvalidArgument
	}
	entry.state = NewFastState()

	t.mu.Lock()
	if _, exists := t.rows[entry.FD]; exists {
		t.mu.Unlock()
		return ErrDuplicateKey
	}
	t.rows[entry.FD] = entry
	t.mu.Unlock()

	logFDInserted(entry.ContextSerial, entry.FD)
	return nil
}

// AddCloseNotify registers handler to run when fd is removed, atomically
// under the table lock. Returns ErrDuplicateValue if a close-notify is
// already set for fd, or ErrNotFound if fd is unknown.
func (t *FDTable) AddCloseNotify(fd int, handler func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.rows[fd]
	if !ok {
		return ErrNotFound
	}
	if t.closeNotify[fd] {
		return ErrDuplicateValue
	}
	entry.OnClose = handler
	t.closeNotify[fd] = true
	return nil
}

// SetIOCB sets or clears the manual-loop io-callback for fd, cross-checked
// against owner (the registering context's serial). A nil cb removes the
// registration and requires owner to match the one that set it, failing
// with ErrNotFound if none is currently set. A non-nil cb fails with
// ErrDuplicateValue if one is already present. Setting clears the
// entry's signaled bit and records direction, so no fd is ever watched
// for both read and write at once (invariant 3).
func (t *FDTable) SetIOCB(fd int, owner int64, direction IODirection, cb func(events IOEvents) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.rows[fd]
	if !ok {
		return ErrNotFound
	}
	if cb == nil {
		if entry.ioCB == nil {
			return ErrNotFound
		}
		if entry.ioCBOwner != owner {
			return ErrInvalidArgument
		}
		entry.ioCB = nil
		entry.ioCBOwner = 0
		entry.Direction = DirectionNone
		entry.signaled = false
		return nil
	}
	if entry.ioCB != nil {
		return ErrDuplicateValue
	}
	entry.ioCB = cb
	entry.ioCBOwner = owner
	entry.Direction = direction
	entry.signaled = false
	return nil
}

// SetActive flips every entry of owner (0 = any) that has a callback
// (OnIO or ioCB) from idle to active, clearing its done flag - the
// set_active(owner) operation.
func (t *FDTable) SetActive(owner int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.rows {
		if owner != 0 && e.ContextSerial != owner {
			continue
		}
		if e.OnIO == nil && e.ioCB == nil {
			continue
		}
		e.state.TryTransition(StateIdle, StateActive)
		e.done = false
	}
}

// Activate transitions fd from Idle to Active, so wait loops start
// dispatching its io-callback. Returns ErrNotFound if fd is unknown.
func (t *FDTable) Activate(fd int) error {
	t.mu.RLock()
	entry, ok := t.rows[fd]
	t.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	entry.state.TryTransition(StateIdle, StateActive)
	return nil
}

// SetDone flips every active entry of owner (0 = any) back to idle and
// marks it done, so no entry is ever active and done at once, and records
// status/opErr as the owner-level completion record GetDone returns -
// even once every one of the owner's fds has since been removed, per
// invariant 5.
func (t *FDTable) SetDone(owner int64, status string, opErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.rows {
		if owner != 0 && e.ContextSerial != owner {
			continue
		}
		if e.state.TryTransition(StateActive, StateIdle) {
			e.done = true
		}
	}
	if owner != 0 {
		t.done[owner] = &doneRecord{status: status, opErr: opErr}
	}
}

// GetDone pops the owner-level record SetDone wrote for owner (0 = any
// owner's record), which survives fd removal, clearing
// the done flag on all of that owner's remaining fds (they share one
// status). Returns the serial of the owner the record belonged to, or 0
// if none was found.
func (t *FDTable) GetDone(owner int64) (serial int64, status string, opErr error, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner != 0 {
		if rec, ok := t.done[owner]; ok {
			delete(t.done, owner)
			for _, e := range t.rows {
				if e.ContextSerial == owner {
					e.done = false
				}
			}
			return owner, rec.status, rec.opErr, true
		}
		return 0, "", nil, false
	}

	for s, rec := range t.done {
		delete(t.done, s)
		for _, e := range t.rows {
			if e.ContextSerial == s {
				e.done = false
			}
		}
		return s, rec.status, rec.opErr, true
	}
	return 0, "", nil, false
}

// IOCBCount reports the number of entries with a callback (OnIO or ioCB)
// belonging to owner (0 = any), used to decide when to emit DONE.
func (t *FDTable) IOCBCount(owner int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.rows {
		if owner != 0 && e.ContextSerial != owner {
			continue
		}
		if e.OnIO != nil || e.ioCB != nil {
			n++
		}
	}
	return n
}

// markSignaled flags fd as ready for its manual-loop callback, for a
// caller driving its own select/poll over GetFDs rather than a WaitLoop.
func (t *FDTable) markSignaled(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.rows[fd]; ok {
		e.signaled = true
	}
}

// GetFDs builds a snapshot of entries matching owner (0 = any) and flags,
// for a caller driving its own select/poll loop over this table. Entries
// currently closing or closed are never returned. SelectClear additionally
// clears each returned entry's signaled bit as it is copied out.
func (t *FDTable) GetFDs(owner int64, flags FDSelector) []FDInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []FDInfo
	for _, e := range t.rows {
		if owner != 0 && e.ContextSerial != owner {
			continue
		}
		switch e.state.Load() {
		case StateClosing, StateClosed:
			continue
		}
		if flags&SelectActive != 0 && e.state.Load() != StateActive {
			continue
		}
		if flags&SelectDone != 0 && !e.done {
			continue
		}
		forRead := e.Direction == DirectionRead
		forWrite := e.Direction == DirectionWrite
		if flags&SelectForRead != 0 && !forRead {
			continue
		}
		if flags&SelectForWrite != 0 && !forWrite {
			continue
		}
		if flags&SelectSignaled != 0 && !e.signaled {
			continue
		}
		if flags&SelectNotSignaled != 0 && e.signaled {
			continue
		}
		out = append(out, FDInfo{FD: e.FD, ForRead: forRead, ForWrite: forWrite, Signaled: e.signaled})
		if flags&SelectClear != 0 {
			e.signaled = false
		}
	}
	return out
}

// RunIOCBs repeatedly picks the signaled entry with the lowest fd that
// matches owner (0 = any), clears that bit, and invokes its manual-loop
// callback outside the table lock. The first callback error stops the
// loop and is returned as opErr; RunIOCBs does not itself cancel the
// owning context's operation or record a done status for it, and fatal
// and operational callback errors are not told apart. Returns the serial
// of the last owner whose callback ran.
func (t *FDTable) RunIOCBs(owner int64) (opErr error, serial int64) {
	for {
		t.mu.Lock()
		var target *FDEntry
		for _, e := range t.rows {
			if owner != 0 && e.ContextSerial != owner {
				continue
			}
			if e.signaled && e.ioCB != nil && (target == nil || e.FD < target.FD) {
				target = e
			}
		}
		if target == nil {
			t.mu.Unlock()
			return opErr, serial
		}
		target.signaled = false
		cb := target.ioCB
		fdSerial := target.ContextSerial
		t.mu.Unlock()

		serial = fdSerial
		if err := cb(target.Events); err != nil {
			return err, fdSerial
		}
	}
}

// Get returns the entry registered for fd, or nil if none is.
func (t *FDTable) Get(fd int) *FDEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[fd]
}

// Remove evicts fd from the table, then marks the entry closing, runs its
// OnClose callback (if any) outside the lock, and marks it closed.
// Returns ErrNotFound if fd is unknown.
func (t *FDTable) Remove(fd int) error {
	t.mu.Lock()
	entry, ok := t.rows[fd]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	delete(t.rows, fd)
	delete(t.closeNotify, fd)
	t.mu.Unlock()

	entry.state.TransitionAny([]FDState{StateIdle, StateActive, StateClosing}, StateClosing)
	if entry.OnClose != nil {
		entry.OnClose()
	}
	entry.state.Store(StateClosed)

	logFDRemoved(entry.ContextSerial, fd)
	return nil
}

// Active returns the fds currently in StateActive, for a wait loop to
// build its poll set from. The slice is a snapshot; entries may be
// removed concurrently by another goroutine.
func (t *FDTable) Active() []*FDEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*FDEntry, 0, len(t.rows))
	for _, e := range t.rows {
		if e.state.IsActive() {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of fds currently registered, active or not.
func (t *FDTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// ForContext returns the fds registered for the given context serial, the
// private-wait-loop discipline (a context's wait loop only
// watches its own fds, not the whole table).
func (t *FDTable) ForContext(serial int64) []*FDEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*FDEntry
	for _, e := range t.rows {
		if e.ContextSerial == serial {
			out = append(out, e)
		}
	}
	return out
}

// Sweep removes every entry belonging to serial whose state is already
// StateClosed. It is a maintenance pass, not a correctness requirement:
// Remove deletes its row before running OnClose, so Remove itself never
// leaves a closed row behind.
func (t *FDTable) Sweep(serial int64) {
	t.sweepMu.Lock()
	defer t.sweepMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, e := range t.rows {
		if e.ContextSerial == serial && e.state.IsTerminal() {
			delete(t.rows, fd)
		}
	}
}
