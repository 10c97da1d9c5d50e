// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"sync/atomic"
)

// opKind identifies which result shape an opData slot's status-line
// handlers (status_parse.go) fold fields into.
type opKind int

const (
	opKindDecryptVerify opKind = iota
	opKindEncrypt
	opKindSign
	opKindVerify
	opKindImport
	opKindKeylist
	opKindGenKey
	opKindDelete
	opKindEdit
	opKindMisc
)

func (k opKind) String() string {
	switch k {
	case opKindDecryptVerify:
		return "decrypt-verify"
	case opKindEncrypt:
		return "encrypt"
	case opKindSign:
		return "sign"
	case opKindVerify:
		return "verify"
	case opKindImport:
		return "import"
	case opKindKeylist:
		return "keylist"
	case opKindGenKey:
		return "genkey"
	case opKindDelete:
		return "delete"
	case opKindEdit:
		return "edit"
	default:
		return "misc"
	}
}

// opDataType distinguishes the result accumulators that may be attached to
// one opData at once. A decrypt-verify operation attaches both
// opDataTypeDecrypt and opDataTypeVerify concurrently; every other opKind
// attaches exactly one type. See D ("op-data slot").
type opDataType int

const (
	opDataTypeDecrypt opDataType = iota
	opDataTypeVerify
	opDataTypeEncrypt
	opDataTypeSign
	opDataTypeImport
	opDataTypeKeylist
)

// opDataMagic guards an opDataSlot against use after its map entry has been
// zero-valued out from under it - the Go equivalent of the magic-cookie
// check the source keeps at the head of each op-data block.
const opDataMagic uint32 = 0x4f504441 // "OPDA"

// opDataSlot is one typed, refcounted result accumulator attached to an
// opData. refs tracks how many handlers currently hold a reference to it;
// cleanup, if set, runs once refs drops to zero, matching the "0 or 1 slots
// of a given type, refcounted" invariant of D invariant 1 -
// the map in opData.slots is what actually enforces "0 or 1"; refs and
// cleanup exist so a slot can outlive the handler that looked it up first.
type opDataSlot struct {
	magic   uint32
	typ     opDataType
	refs    int
	result  any
	cleanup func(any)
}

func (s *opDataSlot) ref() {
	if s.magic != opDataMagic {
		panic("cryptengine: use of freed op-data slot")
	}
	s.refs++
}

func (s *opDataSlot) unref() {
	if s.magic != opDataMagic {
		panic("cryptengine: use of freed op-data slot")
	}
	s.refs--
	if s.refs <= 0 && s.cleanup != nil {
		s.cleanup(s.result)
		s.cleanup = nil
	}
}

// opData is the per-operation state a Context attaches for the lifetime
// of one engine invocation: the fds opened for it, the running parse
// state the status-line dispatcher folds fields into, and the final
// error/result once SUCCESS, FAILURE or ERROR is observed.
type opData struct {
	serial int64
	kind   opKind

	fds []int

	done atomic.Bool
	err  error

	// slots holds the kind-specific accumulators (e.g. *verifyResult,
	// *signResult), keyed by type so a decrypt-verify operation can hold a
	// decrypt slot and a verify slot live at once. Accessed through
	// lookup/getVerify/getDecrypt/etc, never indexed directly outside this
	// file.
	slots map[opDataType]*opDataSlot

	// pendingSig, if non-nil, is the signature currently being built by a
	// run of consecutive status lines (NEWSIG through
	// VALIDSIG/ERRSIG/TRUST_*) by the verify handler.
	pendingSig *Signature

	// keyConsidered caches the most recent KEY_CONSIDERED fingerprint/flags
	// pair until the next INV_RECP or INV_SGNR consumes it.
	keyConsidered       string
	keyConsideredFlags  uint
	keyConsideredCached bool

	// klKey/klUID track the keylist colon-record parser's "current key"
	// and "current user ID" state machine.
	klKey *Key
	klUID *UserID

	// signersWant is the number of signers the sign operation was started
	// with (Context.Signers() at reset time), used by the EOF handler's
	// "not every signer signed" count-mismatch rule.
	signersWant int
}

// lookup returns the slot of the given type, creating it (via newResult) if
// this is the first reference. Zero-or-one slot of a given type is
// maintained by the map itself: a second lookup of the same type always
// returns the same slot rather than allocating a duplicate.
func (od *opData) lookup(typ opDataType, newResult func() any) *opDataSlot {
	if od.slots == nil {
		od.slots = make(map[opDataType]*opDataSlot)
	}
	s, ok := od.slots[typ]
	if !ok {
		s = &opDataSlot{magic: opDataMagic, typ: typ, result: newResult()}
		od.slots[typ] = s
	}
	return s
}

// getDecrypt returns the decrypt accumulator if one is attached (decrypt or
// decrypt-verify operations), without allocating one for kinds that never
// attach it.
func (od *opData) getDecrypt() (*decryptResult, bool) {
	s, ok := od.slots[opDataTypeDecrypt]
	if !ok {
		return nil, false
	}
	return s.result.(*decryptResult), true
}

// getVerify returns the verify accumulator if one is attached (verify or
// decrypt-verify operations).
func (od *opData) getVerify() (*verifyResult, bool) {
	s, ok := od.slots[opDataTypeVerify]
	if !ok {
		return nil, false
	}
	return s.result.(*verifyResult), true
}

func (od *opData) getEncrypt() (*encryptResult, bool) {
	s, ok := od.slots[opDataTypeEncrypt]
	if !ok {
		return nil, false
	}
	return s.result.(*encryptResult), true
}

func (od *opData) getSign() (*signResult, bool) {
	s, ok := od.slots[opDataTypeSign]
	if !ok {
		return nil, false
	}
	return s.result.(*signResult), true
}

func (od *opData) getImport() (*importResult, bool) {
	s, ok := od.slots[opDataTypeImport]
	if !ok {
		return nil, false
	}
	return s.result.(*importResult), true
}

func (od *opData) getKeylist() (*keylistResult, bool) {
	s, ok := od.slots[opDataTypeKeylist]
	if !ok {
		return nil, false
	}
	return s.result.(*keylistResult), true
}

func newOpData(serial int64, kind opKind) *opData {
	od := &opData{serial: serial, kind: kind, slots: make(map[opDataType]*opDataSlot)}
	switch kind {
	case opKindVerify:
		od.lookup(opDataTypeVerify, func() any { return &verifyResult{} })
	case opKindDecryptVerify:
		od.lookup(opDataTypeVerify, func() any { return &verifyResult{} })
		od.lookup(opDataTypeDecrypt, func() any { return &decryptResult{} })
	case opKindEncrypt:
		od.lookup(opDataTypeEncrypt, func() any { return &encryptResult{} })
	case opKindSign:
		od.lookup(opDataTypeSign, func() any { return &signResult{} })
	case opKindImport:
		od.lookup(opDataTypeImport, func() any { return &importResult{} })
	case opKindKeylist:
		od.lookup(opDataTypeKeylist, func() any { return &keylistResult{} })
	}
	return od
}

// fail records err as the operation's terminal outcome, if one has not
// already been recorded. The first error observed wins; later errors are
// discarded, not overwrites.
func (od *opData) fail(err error) {
	if od.err == nil {
		od.err = err
	}
}

// addFD registers fd as belonging to this operation, so release() can
// find it again.
func (od *opData) addFD(fd int) {
	od.fds = append(od.fds, fd)
}
