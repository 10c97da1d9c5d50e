// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import "sort"

// statusTag names one line of the engine's line-oriented status protocol:
// "[GNUPG:] TAG field field.."
type statusTag string

const (
	tagSuccess          statusTag = "SUCCESS"
	tagFailure          statusTag = "FAILURE"
	tagError            statusTag = "ERROR"
	tagProgress         statusTag = "PROGRESS"
	tagBeginDecryption  statusTag = "BEGIN_DECRYPTION"
	tagEndDecryption    statusTag = "END_DECRYPTION"
	tagDecryptionOkay   statusTag = "DECRYPTION_OKAY"
	tagDecryptionFailed statusTag = "DECRYPTION_FAILED"
	tagPlaintext        statusTag = "PLAINTEXT"
	tagPlaintextLength  statusTag = "PLAINTEXT_LENGTH"
	tagNoData           statusTag = "NODATA"
	tagNewSig           statusTag = "NEWSIG"
	tagGoodSig          statusTag = "GOODSIG"
	tagExpSig           statusTag = "EXPSIG"
	tagExpKeySig        statusTag = "EXPKEYSIG"
	tagRevKeySig        statusTag = "REVKEYSIG"
	tagBadSig           statusTag = "BADSIG"
	tagErrSig           statusTag = "ERRSIG"
	tagValidSig         statusTag = "VALIDSIG"
	tagTrustUndefined   statusTag = "TRUST_UNDEFINED"
	tagTrustNever       statusTag = "TRUST_NEVER"
	tagTrustMarginal    statusTag = "TRUST_MARGINAL"
	tagTrustFully       statusTag = "TRUST_FULLY"
	tagTrustUltimate    statusTag = "TRUST_ULTIMATE"
	tagNotationName     statusTag = "NOTATION_NAME"
	tagNotationData     statusTag = "NOTATION_DATA"
	tagNotationFlags    statusTag = "NOTATION_FLAGS"
	tagPolicyURL        statusTag = "POLICY_URL"
	tagTofuUser         statusTag = "TOFU_USER"
	tagTofuStats        statusTag = "TOFU_STATS"
	tagKeyConsidered    statusTag = "KEY_CONSIDERED"
	tagInvRecp          statusTag = "INV_RECP"
	tagInvSgnr          statusTag = "INV_SGNR"
	tagNoRecp           statusTag = "NO_RECP"
	tagNoSgnr           statusTag = "NO_SGNR"
	tagSigCreated       statusTag = "SIG_CREATED"
	tagEncTo            statusTag = "ENC_TO"
	tagImported         statusTag = "IMPORTED"
	tagImportOk         statusTag = "IMPORT_OK"
	tagImportProblem    statusTag = "IMPORT_PROBLEM"
	tagImportRes        statusTag = "IMPORT_RES"
	tagUserIDHint       statusTag = "USERID_HINT"
	tagNeedPassphrase   statusTag = "NEED_PASSPHRASE"
	tagGetLine          statusTag = "GET_LINE"
	tagGetBool          statusTag = "GET_BOOL"
	tagGetHidden        statusTag = "GET_HIDDEN"
	tagEOF              statusTag = "EOF"
)

// statusHandler folds one status line's fields into od, returning an error
// only for protocol violations that should abort the operation
// (ErrInvalidEngine); per-operation failures are recorded via od.fail and
// reported only at SUCCESS/FAILURE/EOF.
type statusHandler func(od *opData, fields []string) error

type statusTableEntry struct {
	tag     statusTag
	handler statusHandler
}

// statusTable is sorted by tag so Dispatch can binary-search it, matching
// the original engine's own status-table lookup discipline (a small
// sorted array, searched once per line) rather than a hash map - status
// lines are parsed one at a time off a blocking read, so lookup cost is
// never the bottleneck, but the sorted-table shape is kept for fidelity
// with the engine this package drives.
var statusTable = buildStatusTable()

func buildStatusTable() []statusTableEntry {
	t := []statusTableEntry{
		{tagSuccess, handleSuccess},
		{tagFailure, handleFailure},
		{tagError, handleError},
		{tagProgress, handleProgress},
		{tagBeginDecryption, handleBeginDecryption},
		{tagEndDecryption, handleEndDecryption},
		{tagDecryptionOkay, handleDecryptionOkay},
		{tagDecryptionFailed, handleDecryptionFailed},
		{tagPlaintext, handlePlaintext},
		{tagPlaintextLength, handlePlaintextLength},
		{tagNoData, handleNoData},
		{tagNewSig, handleNewSig},
		{tagGoodSig, handleGoodSig},
		{tagExpSig, handleExpSig},
		{tagExpKeySig, handleExpKeySig},
		{tagRevKeySig, handleRevKeySig},
		{tagBadSig, handleBadSig},
		{tagErrSig, handleErrSig},
		{tagValidSig, handleValidSig},
		{tagTrustUndefined, handleTrust(ValidityUndefined)},
		{tagTrustNever, handleTrust(ValidityNever)},
		{tagTrustMarginal, handleTrust(ValidityMarginal)},
		{tagTrustFully, handleTrust(ValidityFull)},
		{tagTrustUltimate, handleTrust(ValidityUltimate)},
		{tagNotationName, handleNotationName},
		{tagNotationData, handleNotationData},
		{tagNotationFlags, handleNotationFlags},
		{tagPolicyURL, handlePolicyURL},
		{tagTofuUser, handleTofuUser},
		{tagTofuStats, handleTofuStats},
		{tagKeyConsidered, handleKeyConsidered},
		{tagInvRecp, handleInvRecp},
		{tagInvSgnr, handleInvSgnr},
		{tagNoRecp, handleNoRecp},
		{tagNoSgnr, handleNoSgnr},
		{tagSigCreated, handleSigCreated},
		{tagEncTo, handleEncTo},
		{tagImported, handleImported},
		{tagImportOk, handleImportOk},
		{tagImportProblem, handleImportProblem},
		{tagImportRes, handleImportRes},
		{tagEOF, handleEOF},
	}
	sort.Slice(t, func(i, j int) bool { return t[i].tag < t[j].tag })
	return t
}

func lookupStatusHandler(tag statusTag) statusHandler {
	i := sort.Search(len(statusTable), func(i int) bool { return statusTable[i].tag >= tag })
	if i < len(statusTable) && statusTable[i].tag == tag {
		return statusTable[i].handler
	}
	return nil
}
