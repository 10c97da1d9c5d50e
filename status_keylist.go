// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"strconv"
	"strings"
)

// colonField is field's counterpart for a `:`-split colon record: it
// indexes 1:1 with the engine's documented field numbers minus one (field
// 1, the record type, is fields[0] and is consumed by the caller's switch
// before colonField is ever used).
func colonField(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// setSubkeyTrustInfo reads the letter prefix (stopping at the first digit)
// of a trust-info field into a SubKey's flags.
func setSubkeyTrustInfo(sk *SubKey, src string) {
	for _, ch := range src {
		if ch >= '0' && ch <= '9' {
			break
		}
		switch ch {
		case 'e':
			sk.Expired = true
		case 'r':
			sk.Revoked = true
		case 'd':
			sk.Disabled = true
		case 'i':
			sk.Invalid = true
		}
	}
}

// setMainkeyTrustInfo additionally folds the same flags up onto the Key
// itself, matching the primary subkey's trust-info summarising the whole
// key.
func setMainkeyTrustInfo(k *Key, src string) {
	setSubkeyTrustInfo(k.SubKeys[0], src)
	for _, ch := range src {
		if ch >= '0' && ch <= '9' {
			break
		}
		switch ch {
		case 'e':
			k.Expired = true
		case 'r':
			k.Revoked = true
		case 'd':
			k.Disabled = true
		case 'i':
			k.Invalid = true
		}
	}
}

func setUserIDFlags(u *UserID, src string) {
	for _, ch := range src {
		if ch >= '0' && ch <= '9' {
			break
		}
		switch ch {
		case 'r':
			u.Revoked = true
		case 'i':
			u.Invalid = true
		case 'n':
			u.Validity = ValidityNever
		case 'm':
			u.Validity = ValidityMarginal
		case 'f':
			u.Validity = ValidityFull
		case 'u':
			u.Validity = ValidityUltimate
		}
	}
}

func setSubkeyCapability(sk *SubKey, src string) {
	for _, ch := range src {
		switch ch {
		case 'e':
			sk.CanEncrypt = true
		case 's':
			sk.CanSign = true
		case 'c':
			sk.CanCertify = true
		case 'a':
			sk.CanAuthenticate = true
		case 'q':
			sk.IsQualified = true
		case 'd':
			sk.Disabled = true
		}
	}
}

// setMainkeyCapability sets the primary subkey's capability flags from the
// lowercase letters of src (the same as any other subkey), and the Key's
// own capability summary from both cases - uppercase letters are gpg's way
// of saying "the key as a whole", independent of what its primary subkey
// alone can do.
func setMainkeyCapability(k *Key, src string) {
	setSubkeyCapability(k.SubKeys[0], src)
	for _, ch := range src {
		switch ch {
		case 'd', 'D':
			k.Disabled = true
		case 'e', 'E':
			k.CanEncrypt = true
		case 's', 'S':
			k.CanSign = true
		case 'c', 'C':
			k.CanCertify = true
		case 'a', 'A':
			k.CanAuthenticate = true
		}
	}
}

// setOwnertrust reads the letter prefix of the ownertrust field, stopping
// at the first digit; any letter it doesn't recognise (or none at all)
// leaves the trust at Unknown.
func setOwnertrust(k *Key, src string) {
	k.OwnerTrust = ValidityUnknown
	for _, ch := range src {
		if ch >= '0' && ch <= '9' {
			break
		}
		switch ch {
		case 'n':
			k.OwnerTrust = ValidityNever
		case 'q':
			k.OwnerTrust = ValidityUndefined
		case 'm':
			k.OwnerTrust = ValidityMarginal
		case 'f':
			k.OwnerTrust = ValidityFull
		case 'u':
			k.OwnerTrust = ValidityUltimate
		}
	}
}

// complianceDEVS is the engine's compliance-flag value for "de-vs", the one
// compliance mode this parser tracks (field 18 of a pub/sec/crt/crs
// record; the same field of a sub/ssb record is not recorded).
const complianceDEVS = "23"

func newKeylistSubkey(secret bool) *SubKey {
	return &SubKey{Secret: secret}
}

func startPrimaryRecord(od *opData, recordType string) *Key {
	finishKeylistKey(od)
	key := &Key{Protocol: ProtocolOpenPGP}
	if recordType == "crt" || recordType == "crs" {
		key.Protocol = ProtocolCMS
	}
	secret := recordType == "sec" || recordType == "crs"
	key.Secret = secret
	sk := newKeylistSubkey(secret)
	key.SubKeys = append(key.SubKeys, sk)
	od.klKey = key
	od.klUID = nil
	return key
}

// applyPrimaryOrSubkeyFields fills the shared field layout of
// pub/sec/crt/crs/sub/ssb records (trust-info@1, length@2, algo@3, keyid@4,
// created@5, expires@6, capabilities@11) into sk.
func applyPrimaryOrSubkeyFields(sk *SubKey, fields []string, mainkey *Key) {
	if f := colonField(fields, 1); f != "" {
		if mainkey != nil {
			setMainkeyTrustInfo(mainkey, f)
		} else {
			setSubkeyTrustInfo(sk, f)
		}
	}
	if f := colonField(fields, 2); f != "" {
		if n, err := strconv.Atoi(f); err == nil && n > 1 {
			sk.Length = n
		}
	}
	if f := colonField(fields, 3); f != "" {
		if n, err := strconv.Atoi(f); err == nil && n >= 1 && n < 128 {
			sk.Algorithm = PubkeyAlgo(n)
		}
	}
	if f := colonField(fields, 4); f != "" {
		sk.KeyID = f
	}
	sk.Created = parseUnixTime(colonField(fields, 5))
	sk.Expires = parseUnixTime(colonField(fields, 6))
	if f := colonField(fields, 11); f != "" {
		if mainkey != nil {
			setMainkeyCapability(mainkey, f)
		} else {
			setSubkeyCapability(sk, f)
		}
	}
	if colonField(fields, 17) == complianceDEVS {
		if mainkey != nil {
			mainkey.IsDE_VS = true
		}
	}
}

// DispatchColonRecord parses one `--with-colons` keylist record and folds
// it into od's in-progress Key, per the state machine below. It
// is the stdout counterpart of Dispatch, which only ever sees status-fd
// lines. Unknown record types, and malformed numeric fields, are ignored
// rather than treated as fatal - the keylist parser is deliberately
// tolerant, matching the source engine's own behaviour.
func DispatchColonRecord(od *opData, line string) error {
	fields := strings.Split(line, ":")
	if len(fields) == 0 || fields[0] == "" {
		return nil
	}
	recordType := fields[0]

	if recordType != "sig" && recordType != "rev" && recordType != "tfs" && recordType != "spk" {
		od.klUID = nil
	}

	switch recordType {
	case "pub", "sec", "crt", "crs":
		key := startPrimaryRecord(od, recordType)
		applyPrimaryOrSubkeyFields(key.SubKeys[0], fields, key)
		if key.Protocol == ProtocolCMS {
			key.Owner = colonField(fields, 7)
		}
		setOwnertrust(key, colonField(fields, 8))

	case "sub", "ssb":
		if od.klKey == nil {
			return nil
		}
		sk := newKeylistSubkey(recordType == "ssb")
		od.klKey.SubKeys = append(od.klKey.SubKeys, sk)
		applyPrimaryOrSubkeyFields(sk, fields, nil)

	case "fpr", "fp2":
		if od.klKey == nil || len(od.klKey.SubKeys) == 0 {
			return nil
		}
		fpr := colonField(fields, 9)
		if fpr == "" {
			return nil
		}
		last := od.klKey.SubKeys[len(od.klKey.SubKeys)-1]
		if recordType == "fpr" {
			if last.Fingerprint == "" {
				last.Fingerprint = fpr
			}
		}

	case "grp":
		// Keygrip: no corresponding field on SubKey in this model, so the
		// record is accepted but not stored.

	case "uid":
		if od.klKey == nil {
			return nil
		}
		uid := parseUserIDString(colonField(fields, 9))
		if f := colonField(fields, 1); f != "" {
			setUserIDFlags(uid, f)
		}
		if f := colonField(fields, 7); f != "" {
			uid.UIDHash = f
		}
		od.klKey.UserIDs = append(od.klKey.UserIDs, uid)
		od.klUID = uid

	default:
		// Unknown or not-yet-modelled record type (sig/rev/tfs/spk/rvk):
		// ignored, per the tolerant-parser rule above.
	}
	return nil
}

// parseUserIDString decomposes a free-form "Name (Comment) <email>" user ID
// string into its parts. Any part not present is left empty.
func parseUserIDString(s string) *UserID {
	u := &UserID{UID: s}
	name := s
	if i := strings.Index(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j >= 0 {
			u.Email = s[i+1 : i+j]
			u.Address = u.Email
			name = strings.TrimSpace(s[:i])
		}
	}
	if i := strings.Index(name, "("); i >= 0 {
		if j := strings.Index(name[i:], ")"); j >= 0 {
			u.Comment = strings.TrimSpace(name[i+1 : i+j])
			name = strings.TrimSpace(name[:i] + name[i+j+1:])
		}
	}
	u.Name = strings.TrimSpace(name)
	return u
}

// finishKeylistKey closes out the in-progress key (if any): it folds
// per-subkey capabilities up into the Key's has_encrypt/has_sign/
// has_certify/has_authenticate summary and appends the finished key to the
// keylist result, emulating the source engine's NEXT_KEY event.
func finishKeylistKey(od *opData) {
	key := od.klKey
	if key == nil {
		return
	}
	for _, sk := range key.SubKeys {
		if sk.CanEncrypt {
			key.HasEncrypt = true
		}
		if sk.CanSign {
			key.HasSign = true
		}
		if sk.CanCertify {
			key.HasCertify = true
		}
		if sk.CanAuthenticate {
			key.HasAuthenticate = true
		}
	}
	od.klKey = nil
	od.klUID = nil
	if kr, ok := od.getKeylist(); ok {
		kr.Keys = append(kr.Keys, key)
	}
}

// finalizeKeylistEOF closes out whatever key was still in progress when the
// engine's colon output ended without a following primary record.
func finalizeKeylistEOF(od *opData) {
	finishKeylistKey(od)
}
