// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatusTable_Bijection covers invariant 6: the tag lookup
// is a bijection between the known tag strings and handler values - every
// table entry round-trips through lookupStatusHandler, and no two entries
// share a tag.
func TestStatusTable_Bijection(t *testing.T) {
	seen := make(map[statusTag]bool)
	for _, e := range statusTable {
		assert.False(t, seen[e.tag], "duplicate tag %s", e.tag)
		seen[e.tag] = true
		assert.NotNil(t, lookupStatusHandler(e.tag), "tag %s did not resolve", e.tag)
	}
	assert.Nil(t, lookupStatusHandler(statusTag("NOT_A_REAL_TAG")))
}

// TestParseTimestamp covers invariant 8.
func TestParseTimestamp(t *testing.T) {
	zero, ok := parseTimestamp("0")
	require.True(t, ok)
	assert.True(t, zero.IsZero())

	zero, ok = parseTimestamp("")
	require.True(t, ok)
	assert.True(t, zero.IsZero())

	ts, ok := parseTimestamp("20240101T000000")
	require.True(t, ok)
	assert.EqualValues(t, 1704067200, ts.Unix())

	ts2, ok := parseTimestamp("1704067200")
	require.True(t, ok)
	assert.Equal(t, ts.Unix(), ts2.Unix())

	_, ok = parseTimestamp("notatime")
	assert.False(t, ok)
}

// TestDispatch_ScenarioB covers scenario B: encrypt to an
// unknown recipient.
func TestDispatch_ScenarioB(t *testing.T) {
	od := newOpData(1, opKindEncrypt)
	lines := []string{
		"[GNUPG:] KEY_CONSIDERED DEAD00 0",
		"[GNUPG:] INV_RECP 1 DEAD00",
		"[GNUPG:] FAILURE encrypt 167772185",
	}
	for _, l := range lines {
		require.NoError(t, Dispatch(od, l))
	}

	er, ok := od.getEncrypt()
	require.True(t, ok)
	require.Len(t, er.InvalidRecipients, 1)
	assert.Equal(t, "DEAD00", er.InvalidRecipients[0].Fingerprint)
	assert.Equal(t, reasonNoPubkey, er.InvalidRecipients[0].Reason)
	assert.ErrorIs(t, od.err, ErrUnusablePublicKey)
}

// TestDispatch_ScenarioE covers scenario E: import producing
// mixed results.
func TestDispatch_ScenarioE(t *testing.T) {
	od := newOpData(1, opKindImport)
	lines := []string{
		"[GNUPG:] IMPORT_OK 1 AAAA",
		"[GNUPG:] IMPORT_PROBLEM 2 BBBB",
		"[GNUPG:] IMPORT_RES 2 0 1 0 0 0 0 0 0 0 0 0 0 1 0",
		"[GNUPG:] EOF",
	}
	for _, l := range lines {
		require.NoError(t, Dispatch(od, l))
	}

	ir, ok := od.getImport()
	require.True(t, ok)
	assert.Equal(t, 2, ir.Considered)
	assert.Equal(t, 1, ir.Imported)
	assert.Equal(t, 1, ir.NotImported)
	require.Len(t, ir.Imports, 2)
	assert.Equal(t, "AAAA", ir.Imports[0].Fingerprint)
	assert.Equal(t, 1, ir.Imports[0].Status)
	assert.Equal(t, ImportResultOK, ir.Imports[0].Result)
	assert.Equal(t, "BBBB", ir.Imports[1].Fingerprint)
	assert.Equal(t, 0, ir.Imports[1].Status)
	assert.Equal(t, ImportResultMissingIssuerCert, ir.Imports[1].Result)
}

// TestDispatch_ScenarioA covers scenario A: decrypt-verify of a
// payload that is signed but not encrypted.
func TestDispatch_ScenarioA(t *testing.T) {
	od := newOpData(1, opKindDecryptVerify)
	lines := []string{
		"[GNUPG:] PLAINTEXT 62 0",
		"[GNUPG:] NEWSIG",
		"[GNUPG:] GOODSIG ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234 alice",
		"[GNUPG:] VALIDSIG ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234 2024-01-01 1704067200 0 4 0 1 8",
		"[GNUPG:] TRUST_FULLY 0 classic",
		"[GNUPG:] ERROR proc_pkt.plaintext 58",
		"[GNUPG:] EOF",
	}
	for _, l := range lines {
		require.NoError(t, Dispatch(od, l))
	}

	assert.ErrorIs(t, od.err, ErrNoData)

	vr, ok := od.getVerify()
	require.True(t, ok)
	require.Len(t, vr.Signatures, 1)
	sig := vr.Signatures[0]
	assert.NoError(t, sig.Status)
	assert.Equal(t, ValidityFull, sig.Validity)
	assert.Equal(t, "ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234", sig.Fingerprint)
	assert.Equal(t, SigSummaryGreen|SigSummaryValid, sig.Summary)
}

// TestDispatch_UnknownTagIgnored ensures an unrecognized tag is a no-op
// rather than an error ("unknown tags are ignored").
func TestDispatch_UnknownTagIgnored(t *testing.T) {
	od := newOpData(1, opKindMisc)
	assert.NoError(t, Dispatch(od, "[GNUPG:] SOME_FUTURE_TAG a b c"))
}
