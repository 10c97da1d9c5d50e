// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import "time"

// Validity is the trust/validity level the engine assigns a key or
// user ID.
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityUndefined
	ValidityNever
	ValidityMarginal
	ValidityFull
	ValidityUltimate
)

func (v Validity) String() string {
	switch v {
	case ValidityUndefined:
		return "undefined"
	case ValidityNever:
		return "never"
	case ValidityMarginal:
		return "marginal"
	case ValidityFull:
		return "full"
	case ValidityUltimate:
		return "ultimate"
	default:
		return "unknown"
	}
}

// PubkeyAlgo identifies a public-key algorithm by its engine-reported
// numeric code.
type PubkeyAlgo int

// SubKey is one cryptographic subkey of a Key: the primary key is
// SubKeys[0].
type SubKey struct {
	Fingerprint string
	KeyID       string
	Algorithm   PubkeyAlgo
	Length      int
	Created     time.Time
	Expires     time.Time

	Revoked     bool
	Expired     bool
	Disabled    bool
	Invalid     bool
	CanSign     bool
	CanEncrypt  bool
	CanCertify  bool
	CanAuthenticate bool
	IsQualified bool
	Secret      bool

	CardNumber string
}

// UserID is one identity attached to a Key.
type UserID struct {
	UID      string
	Name     string
	Comment  string
	Email    string
	Address  string
	Validity Validity
	UIDHash  string

	Revoked bool
	Invalid bool

	Signatures []*KeySignature
	TOFU       []*TOFUInfo
}

// SigNotation is one notation or policy-URL subpacket attached to a
// KeySignature.
type SigNotation struct {
	Name          string
	Value         string
	Flags         uint32
	HumanReadable bool
	IsCritical    bool
	IsPolicyURL   bool
}

// KeySignature is one certification over a UserID.
type KeySignature struct {
	KeyID       string
	Algorithm   PubkeyAlgo
	Created     time.Time
	Expires     time.Time
	Revoked     bool
	Expired     bool
	Invalid     bool
	Exportable  bool
	TrustDepth  int
	TrustValue  int
	TrustScope  string
	SigClass    uint
	Notations   []*SigNotation
	Status      error
}

// TOFUInfo summarizes a trust-on-first-use binding for a UserID.
type TOFUInfo struct {
	Validity    Validity
	Policy      string
	SignCount   int
	EncrCount   int
	SignFirst   time.Time
	SignLast    time.Time
	EncrFirst   time.Time
	EncrLast    time.Time
	Description string
}

// RevocationKey is a designated revoker recorded on a Key.
type RevocationKey struct {
	Algorithm   PubkeyAlgo
	Fingerprint string
	Sensitive   bool
}

// Key is the result of a keylist operation (or a handle obtained by
// fingerprint). SubKeys[0] is the primary key.
type Key struct {
	Protocol Protocol
	Revoked  bool
	Expired  bool
	Disabled bool
	Invalid  bool
	Secret   bool
	CanSign  bool
	CanEncrypt bool
	CanCertify bool
	CanAuthenticate bool

	// Has* summarize the corresponding subkey capability across every
	// subkey of the key, not just the primary: a key may be unable to
	// certify itself while a subkey can. Set once the colon-record
	// parser finishes the key.
	HasEncrypt      bool
	HasSign         bool
	HasCertify      bool
	HasAuthenticate bool

	// OwnerTrust is the locally-assigned trust (field 9 of the pub/sec
	// colon record), distinct from a UserID's computed Validity.
	OwnerTrust Validity

	// IsDE_VS reports whether the primary subkey's compliance flags
	// (field 18 of the pub/sec/crt/crs record) marked it DE-VS compliant.
	IsDE_VS bool

	Owner  string // issuer-serial for CMS, empty for OpenPGP
	Origin string

	SubKeys []*SubKey
	UserIDs []*UserID
	Revokers []*RevocationKey
}

// Fingerprint is a convenience accessor for the primary subkey's
// fingerprint, matching the common case of identifying a Key by it.
func (k *Key) Fingerprint() string {
	if len(k.SubKeys) == 0 {
		return ""
	}
	return k.SubKeys[0].Fingerprint
}

// PrimaryUserID returns the first, non-revoked UserID, or the first
// UserID if every one is revoked, or nil if there are none.
func (k *Key) PrimaryUserID() *UserID {
	if len(k.UserIDs) == 0 {
		return nil
	}
	for _, u := range k.UserIDs {
		if !u.Revoked {
			return u
		}
	}
	return k.UserIDs[0]
}

// Signature is one signature verified or created by an operation.
type Signature struct {
	Summary     uint32
	Fingerprint string
	Status      error
	Notations   []*SigNotation
	Created     time.Time
	Expires     time.Time
	Timestamp   time.Time
	WrongKeyUsage bool
	PKATrust    byte
	ChainModel  bool
	Validity    Validity
	ValidityReason error
	PubkeyAlgo  PubkeyAlgo
	HashAlgo    int
	IsDE_VS     bool
}
