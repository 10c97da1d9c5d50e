// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

// Protocol identifies the wire protocol a Context's engine subprocess
// speaks.
type Protocol int

const (
	ProtocolOpenPGP Protocol = iota
	ProtocolCMS
	ProtocolGPGConf
	ProtocolAssuan
	ProtocolG13
	ProtocolUIServer
	ProtocolSpawn
	ProtocolDefault
)

func (p Protocol) String() string {
	switch p {
	case ProtocolOpenPGP:
		return "OpenPGP"
	case ProtocolCMS:
		return "CMS"
	case ProtocolGPGConf:
		return "GpgConf"
	case ProtocolAssuan:
		return "Assuan"
	case ProtocolG13:
		return "G13"
	case ProtocolUIServer:
		return "UIServer"
	case ProtocolSpawn:
		return "Spawn"
	default:
		return "Default"
	}
}

// PinentryMode selects how an engine sources a passphrase.
type PinentryMode int

const (
	PinentryModeDefault PinentryMode = iota
	PinentryModeAsk
	PinentryModeCancel
	PinentryModeError
	PinentryModeLoopback
)

// KeylistMode is a bitset controlling the scope and detail of a subsequent
// keylist operation.
type KeylistMode uint32

const (
	KeylistModeLocal KeylistMode = 1 << iota
	KeylistModeExtern
	KeylistModeSigs
	KeylistModeSigNotations
	KeylistModeWithSecret
	KeylistModeWithTofu
	KeylistModeEphemeral
	KeylistModeValidate
	KeylistModeForceExtern
)

// Has reports whether all bits of other are set in m.
func (m KeylistMode) Has(other KeylistMode) bool {
	return m&other == other
}
