// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Reason codes for INV_RECP/INV_SGNR.
const (
	reasonGeneral = iota
	reasonNoPubkey
	reasonAmbiguousName
	reasonWrongKeyUsage
	reasonCertRevoked
	reasonCertExpired
	reasonNoCRLKnown
	reasonCRLTooOld
	reasonNoPolicyMatch
	reasonNoSeckey
	reasonPubkeyNotTrusted
	reasonMissingCert
	reasonMissingIssuerCert
	reasonKeyDisabled
	reasonInvUserID
	reasonSubkeysExpOrRev
)

// verifyResult accumulates the outcome of a verify or decrypt-verify
// operation: one Signature per NEWSIG-delimited run the engine reports.
type verifyResult struct {
	Signatures []*Signature
	FileName   string
}

// decryptResult accumulates the decrypt half of a decrypt-verify operation,
// kept separate from verifyResult so the two can be attached to one opData
// at once.
type decryptResult struct {
	UnsupportedAlgorithm string
	WrongKeyUsage        bool
	IsDE_VS               bool
	SessionKey            string
	PlaintextSeen         bool
}

type encryptResult struct {
	InvalidRecipients []invalidKey
}

type signResult struct {
	InvalidSigners []invalidKey
	CreatedSigs    []*sigCreated
}

type sigCreated struct {
	Type       byte
	PubkeyAlgo PubkeyAlgo
	HashAlgo   int
	Class      string
	Timestamp  time.Time
	KeyFpr     string
}

type invalidKey struct {
	Fingerprint string
	Reason      int
}

// ImportResult classifies the per-key outcome of an import operation.
type ImportResult int

const (
	ImportResultOK ImportResult = iota
	ImportResultBadCert
	ImportResultMissingIssuerCert
	ImportResultBadCertChain
	ImportResultGeneral
)

func (r ImportResult) String() string {
	switch r {
	case ImportResultOK:
		return "OK"
	case ImportResultBadCert:
		return "BAD_CERT"
	case ImportResultMissingIssuerCert:
		return "MISSING_ISSUER_CERT"
	case ImportResultBadCertChain:
		return "BAD_CERT_CHAIN"
	default:
		return "GENERAL"
	}
}

// importProblemResult maps an IMPORT_PROBLEM reason code to the fixed
// result enum: codes 1-3 have named meanings, anything else
// (including an unrecognised future code) is GENERAL.
func importProblemResult(code int) ImportResult {
	switch code {
	case 1:
		return ImportResultBadCert
	case 2:
		return ImportResultMissingIssuerCert
	case 3:
		return ImportResultBadCertChain
	default:
		return ImportResultGeneral
	}
}

// ImportStatus is one key's outcome within an import operation, from either
// an IMPORT_OK or an IMPORT_PROBLEM status line.
type ImportStatus struct {
	Fingerprint string
	Status      int
	Result      ImportResult
}

type importResult struct {
	Considered      int
	NoUserID        int
	Imported        int
	ImportedRSA     int
	Unchanged       int
	NewUserIDs      int
	NewSubkeys      int
	NewSigs         int
	NewRevocations  int
	SecretRead      int
	SecretImported  int
	SecretUnchanged int
	NotImported     int
	Imports         []ImportStatus
}

type keylistResult struct {
	Keys      []*Key
	Truncated bool
}

// Dispatch parses one status line of the form "[GNUPG:] TAG field ..." and
// folds it into od via the matching handler in statusTable. Lines for an
// unrecognized tag are ignored (engines may emit tags a
// given library version predates).
func Dispatch(od *opData, line string) error {
	line = strings.TrimPrefix(line, "[GNUPG:] ")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	tag := statusTag(fields[0])
	handler := lookupStatusHandler(tag)
	if handler == nil {
		return nil
	}
	return handler(od, fields[1:])
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// parseTimestamp implements invariant 8: the scalar
// format is either seconds-since-epoch or "YYYYMMDDThhmmss". "0"/empty
// means unknown and returns (zero time, true); a parse error returns
// (zero time, false) - sticky ErrInvalidEngine territory for a caller
// that wants to enforce it.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" || s == "0" {
		return time.Time{}, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), true
	}
	if t, err := time.ParseInLocation("20060102T150405", s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseUnixTime is the lenient form used by status-line field parsers
// that do not abort the operation on a malformed timestamp: an invalid
// value is folded to the zero time rather than surfaced.
func parseUnixTime(s string) time.Time {
	t, _ := parseTimestamp(s)
	return t
}

func handleSuccess(od *opData, fields []string) error {
	return nil
}

func handleFailure(od *opData, fields []string) error {
	loc := field(fields, 0)
	code := 0
	if parts := strings.Split(field(fields, 1), "."); len(parts) > 0 {
		code, _ = strconv.Atoi(parts[0])
	}
	od.fail(&OpError{Where: loc, Code: code, Cause: ErrGeneral})
	return nil
}

func handleError(od *opData, fields []string) error {
	loc := field(fields, 0)
	code, _ := strconv.Atoi(field(fields, 1))
	var cause error = ErrGeneral
	switch code {
	case 11:
		cause = ErrBadPassphrase
	case 58:
		cause = ErrNoData
	case 33:
		cause = ErrUnusablePublicKey
	}
	od.fail(&OpError{Where: loc, Code: code, Cause: cause})
	return nil
}

func handleProgress(od *opData, fields []string) error {
	return nil
}

func handleBeginDecryption(od *opData, fields []string) error {
	return nil
}

func handleEndDecryption(od *opData, fields []string) error {
	return nil
}

func handleDecryptionOkay(od *opData, fields []string) error {
	return nil
}

func handleDecryptionFailed(od *opData, fields []string) error {
	od.fail(ErrBadData)
	return nil
}

func handlePlaintext(od *opData, fields []string) error {
	dr, ok := od.getDecrypt()
	if !ok {
		return nil
	}
	if dr.PlaintextSeen {
		return &OpError{Where: "decrypt.plaintext", Cause: ErrInvalidEngine}
	}
	dr.PlaintextSeen = true
	return nil
}

func handlePlaintextLength(od *opData, fields []string) error {
	return nil
}

func handleNoData(od *opData, fields []string) error {
	od.fail(ErrNoData)
	return nil
}

func currentSig(od *opData) *Signature {
	if od.pendingSig == nil {
		od.pendingSig = &Signature{}
	}
	return od.pendingSig
}

// sigIsBlank reports whether sig was allocated by currentSig but never
// actually annotated by a GOODSIG/BADSIG/VALIDSIG/etc handler - the
// "NEWSIG with no follow-up" case, whose trailing record
// must be discarded rather than flushed.
func sigIsBlank(sig *Signature) bool {
	return sig.Fingerprint == "" && sig.Status == nil && sig.Validity == ValidityUnknown && len(sig.Notations) == 0
}

func flushSig(od *opData) {
	if od.pendingSig == nil {
		return
	}
	if vr, ok := od.getVerify(); ok {
		vr.Signatures = append(vr.Signatures, od.pendingSig)
	}
	od.pendingSig = nil
}

func handleNewSig(od *opData, fields []string) error {
	flushSig(od)
	return nil
}

func handleGoodSig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Status = nil
	return nil
}

func handleExpSig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Status = ErrSigExpired
	return nil
}

func handleExpKeySig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Status = ErrKeyExpired
	return nil
}

func handleRevKeySig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Status = ErrCertRevoked
	return nil
}

func handleBadSig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Status = ErrBadSignature
	return nil
}

func handleErrSig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 6)
	code, _ := strconv.Atoi(field(fields, 5))
	sig.PubkeyAlgo = PubkeyAlgo(mustAtoi(field(fields, 1)))
	sig.HashAlgo = mustAtoi(field(fields, 2))
	switch code {
	case 4:
		sig.Status = ErrNotImplemented
	case 9:
		sig.Status = ErrNoPubkey
	default:
		sig.Status = ErrGeneral
	}
	return nil
}

func handleValidSig(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Fingerprint = field(fields, 0)
	sig.Created = parseUnixTime(field(fields, 2))
	sig.Expires = parseUnixTime(field(fields, 3))
	sig.PubkeyAlgo = PubkeyAlgo(mustAtoi(field(fields, 5)))
	sig.HashAlgo = mustAtoi(field(fields, 6))
	return nil
}

func handleTrust(v Validity) statusHandler {
	return func(od *opData, fields []string) error {
		sig := currentSig(od)
		sig.Validity = v
		return nil
	}
}

func handleNotationName(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Notations = append(sig.Notations, &SigNotation{Name: field(fields, 0)})
	return nil
}

func handleNotationData(od *opData, fields []string) error {
	sig := currentSig(od)
	if len(sig.Notations) == 0 {
		return nil
	}
	n := sig.Notations[len(sig.Notations)-1]
	if n.Value != "" {
		n.Value += "\n"
	}
	n.Value += field(fields, 0)
	return nil
}

func handleNotationFlags(od *opData, fields []string) error {
	sig := currentSig(od)
	if len(sig.Notations) == 0 {
		return nil
	}
	n := sig.Notations[len(sig.Notations)-1]
	n.HumanReadable = field(fields, 0) == "1"
	n.IsCritical = field(fields, 1) == "1"
	return nil
}

func handlePolicyURL(od *opData, fields []string) error {
	sig := currentSig(od)
	sig.Notations = append(sig.Notations, &SigNotation{Value: field(fields, 0), IsPolicyURL: true})
	return nil
}

func handleTofuUser(od *opData, fields []string) error {
	return nil
}

func handleTofuStats(od *opData, fields []string) error {
	return nil
}

func handleKeyConsidered(od *opData, fields []string) error {
	od.keyConsidered = field(fields, 0)
	flags, _ := strconv.ParseUint(field(fields, 1), 10, 32)
	od.keyConsideredFlags = uint(flags)
	od.keyConsideredCached = true
	return nil
}

// invRecpReason maps the INV_RECP/INV_SGNR reason code to the fixed error
// enum. subkeysExpOrRev overrides the GENERAL case for
// reason 0 when a KEY_CONSIDERED with flags bit 1 immediately preceded it.
func invRecpReason(code int, subkeysExpOrRev bool) int {
	if code == 0 && subkeysExpOrRev {
		return reasonSubkeysExpOrRev
	}
	switch code {
	case 0:
		return reasonGeneral
	case 1:
		return reasonNoPubkey
	case 2:
		return reasonAmbiguousName
	case 3:
		return reasonWrongKeyUsage
	case 4:
		return reasonCertRevoked
	case 5:
		return reasonCertExpired
	case 6:
		return reasonNoCRLKnown
	case 7:
		return reasonCRLTooOld
	case 8:
		return reasonNoPolicyMatch
	case 9:
		return reasonNoSeckey
	case 10:
		return reasonPubkeyNotTrusted
	case 11:
		return reasonMissingCert
	case 12:
		return reasonMissingIssuerCert
	case 13:
		return reasonKeyDisabled
	case 14:
		return reasonInvUserID
	default:
		return reasonGeneral
	}
}

// consumeKeyConsidered pops the cached KEY_CONSIDERED pair, reporting
// whether its flags had bit 1 (value 2: subkeys expired/revoked) set.
func consumeKeyConsidered(od *opData) (subkeysExpOrRev bool) {
	if !od.keyConsideredCached {
		return false
	}
	subkeysExpOrRev = od.keyConsideredFlags&0x2 != 0
	od.keyConsideredCached = false
	return subkeysExpOrRev
}

func handleInvRecp(od *opData, fields []string) error {
	code, _ := strconv.Atoi(field(fields, 0))
	reason := invRecpReason(code, consumeKeyConsidered(od))
	if er, ok := od.getEncrypt(); ok {
		er.InvalidRecipients = append(er.InvalidRecipients, invalidKey{Fingerprint: field(fields, 1), Reason: reason})
	}
	od.fail(ErrUnusablePublicKey)
	return nil
}

func handleInvSgnr(od *opData, fields []string) error {
	code, _ := strconv.Atoi(field(fields, 0))
	reason := invRecpReason(code, consumeKeyConsidered(od))
	if sr, ok := od.getSign(); ok {
		sr.InvalidSigners = append(sr.InvalidSigners, invalidKey{Fingerprint: field(fields, 1), Reason: reason})
	}
	od.fail(ErrUnusablePublicKey)
	return nil
}

func handleNoRecp(od *opData, fields []string) error {
	od.fail(ErrUnusablePublicKey)
	return nil
}

func handleNoSgnr(od *opData, fields []string) error {
	od.fail(ErrBadPassphrase)
	return nil
}

func handleSigCreated(od *opData, fields []string) error {
	sr, ok := od.getSign()
	if !ok {
		return nil
	}
	kindField := field(fields, 0)
	if kindField == "" {
		return &OpError{Where: "sign.sig_created", Cause: ErrInvalidEngine}
	}
	created := &sigCreated{
		Type:       kindField[0],
		PubkeyAlgo: PubkeyAlgo(mustAtoi(field(fields, 1))),
		HashAlgo:   mustAtoi(field(fields, 2)),
		Class:      field(fields, 3),
		Timestamp:  parseUnixTime(field(fields, 4)),
		KeyFpr:     field(fields, 6),
	}
	sr.CreatedSigs = append(sr.CreatedSigs, created)
	return nil
}

func handleEncTo(od *opData, fields []string) error {
	return nil
}

func handleImported(od *opData, fields []string) error {
	return nil
}

func handleImportOk(od *opData, fields []string) error {
	ir, ok := od.getImport()
	if !ok {
		return nil
	}
	status, _ := strconv.Atoi(field(fields, 0))
	ir.Imports = append(ir.Imports, ImportStatus{
		Fingerprint: field(fields, 1),
		Status:      status,
		Result:      ImportResultOK,
	})
	ir.Imported++
	return nil
}

func handleImportProblem(od *opData, fields []string) error {
	ir, ok := od.getImport()
	if !ok {
		return nil
	}
	reason, _ := strconv.Atoi(field(fields, 0))
	ir.Imports = append(ir.Imports, ImportStatus{
		Fingerprint: field(fields, 1),
		Status:      0,
		Result:      importProblemResult(reason),
	})
	ir.NotImported++
	return nil
}

func handleImportRes(od *opData, fields []string) error {
	ir, ok := od.getImport()
	if !ok {
		return nil
	}
	vals := make([]int, len(fields))
	for i, f := range fields {
		vals[i] = mustAtoi(f)
	}
	if len(vals) > 0 {
		ir.Considered = vals[0]
	}
	if len(vals) > 1 {
		ir.NoUserID = vals[1]
	}
	if len(vals) > 2 {
		ir.Imported = vals[2]
	}
	if len(vals) > 3 {
		ir.ImportedRSA = vals[3]
	}
	if len(vals) > 4 {
		ir.Unchanged = vals[4]
	}
	if len(vals) > 5 {
		ir.NewUserIDs = vals[5]
	}
	if len(vals) > 6 {
		ir.NewSubkeys = vals[6]
	}
	if len(vals) > 7 {
		ir.NewSigs = vals[7]
	}
	if len(vals) > 8 {
		ir.NewRevocations = vals[8]
	}
	if len(vals) > 9 {
		ir.SecretRead = vals[9]
	}
	if len(vals) > 10 {
		ir.SecretImported = vals[10]
	}
	if len(vals) > 11 {
		ir.SecretUnchanged = vals[11]
	}
	// NotImported is intentionally left as accumulated by handleImportProblem
	// rather than overwritten from vals[13]: the two counters describe the
	// same quantity from two different status lines, and per-problem
	// accounting is what individual IMPORT_PROBLEM entries in ir.Imports
	// need to stay consistent with.
	return nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// --- signature summary (invariant 9) ---

// SigSummary bits, computed by calcSigSummary at end-of-operation.
const (
	SigSummaryValid        uint32 = 0x0001
	SigSummaryGreen        uint32 = 0x0002
	SigSummaryRed          uint32 = 0x0004
	SigSummaryKeyRevoked   uint32 = 0x0010
	SigSummaryKeyExpired   uint32 = 0x0020
	SigSummarySigExpired   uint32 = 0x0040
	SigSummaryKeyMissing   uint32 = 0x0080
	SigSummaryCRLMissing   uint32 = 0x0100
	SigSummaryCRLTooOld    uint32 = 0x0200
	SigSummaryBadPolicy    uint32 = 0x0400
	SigSummarySysError     uint32 = 0x0800
	SigSummaryTofuConflict uint32 = 0x1000
)

func sigStatusIs(status error, target error) bool {
	return status != nil && errors.Is(status, target)
}

// calcSigSummary fills in sig.Summary from (validity, status, wrong-key-usage,
// validity-reason), following the table for invariant 9: GREEN
// if the key is fully/ultimately trusted and the signature itself checked
// out (ok, or expired in a way that doesn't invalidate it); RED if an
// untrusted key produced the same statuses, or the signature failed
// cryptographic verification outright; additional bits layer on top for the
// specific defect a non-green status represents; VALID is set iff the
// result is GREEN and nothing else.
func calcSigSummary(sig *Signature) {
	var sum uint32

	okish := sig.Status == nil || sigStatusIs(sig.Status, ErrSigExpired) || sigStatusIs(sig.Status, ErrKeyExpired)
	if (sig.Validity == ValidityFull || sig.Validity == ValidityUltimate) && okish {
		sum |= SigSummaryGreen
	}
	if sig.Validity == ValidityNever && okish {
		sum |= SigSummaryRed
	}
	if sigStatusIs(sig.Status, ErrBadSignature) {
		sum |= SigSummaryRed
	}

	switch {
	case sigStatusIs(sig.Status, ErrSigExpired):
		sum |= SigSummarySigExpired
	case sigStatusIs(sig.Status, ErrKeyExpired):
		sum |= SigSummaryKeyExpired
	case sigStatusIs(sig.Status, ErrNoPubkey):
		sum |= SigSummaryKeyMissing
	case sigStatusIs(sig.Status, ErrCertRevoked):
		sum |= SigSummaryKeyRevoked
	}

	if sig.Validity == ValidityUnknown && sigStatusIs(sig.ValidityReason, ErrCRLTooOld) {
		sum |= SigSummaryCRLTooOld
	}
	if sigStatusIs(sig.ValidityReason, ErrCertRevoked) {
		sum |= SigSummaryKeyRevoked
	}
	if sig.WrongKeyUsage {
		sum |= SigSummaryBadPolicy
	}

	if sum == SigSummaryGreen {
		sum |= SigSummaryValid
	}
	sig.Summary = sum
}

// --- end-of-operation finalisation ---

func handleEOF(od *opData, fields []string) error {
	switch od.kind {
	case opKindVerify, opKindDecryptVerify:
		finalizeVerifyEOF(od)
	case opKindSign:
		finalizeSignEOF(od)
	case opKindKeylist:
		finalizeKeylistEOF(od)
	}
	return nil
}

// finalizeVerifyEOF drops a trailing blank signature (NEWSIG with no
// follow-up) and computes the summary bitmask for every signature that
// survives. A NO_DATA recorded by the decrypt half of a decrypt-verify
// operation does not skip this: the input may simply not have been
// encrypted while still being signed (scenario A).
func finalizeVerifyEOF(od *opData) {
	if sig := od.pendingSig; sig != nil {
		if sigIsBlank(sig) {
			od.pendingSig = nil
		} else {
			flushSig(od)
		}
	}
	vr, ok := od.getVerify()
	if !ok {
		return
	}
	for _, sig := range vr.Signatures {
		calcSigSummary(sig)
	}
}

// finalizeSignEOF implements the "not every signer signed" rule: if the
// number of signatures actually created plus already-invalid signers does
// not equal the number of signers configured on the context, every created
// signature is demoted to invalid-signer instead, because a partial result
// is not safe to hand back as success.
func finalizeSignEOF(od *opData) {
	sr, ok := od.getSign()
	if !ok {
		return
	}
	if len(sr.CreatedSigs)+len(sr.InvalidSigners) == signersConfigured(od) {
		return
	}
	for _, cs := range sr.CreatedSigs {
		sr.InvalidSigners = append(sr.InvalidSigners, invalidKey{Fingerprint: cs.KeyFpr, Reason: reasonGeneral})
	}
	sr.CreatedSigs = nil
}

func signersConfigured(od *opData) int {
	return od.signersWant
}
