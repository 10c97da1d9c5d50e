// Package cryptengine error taxonomy.
package cryptengine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match these with [errors.Is]; wrapped errors
// produced by this package always unwrap to one of these where applicable.
var (
	// ErrInvalidArgument covers missing contexts, nil required parameters,
	// and protocol mismatches.
	ErrInvalidArgument = errors.New("cryptengine: invalid argument")

	// ErrDuplicateKey is returned by FDTable.Insert when the fd is already
	// present.
	ErrDuplicateKey = errors.New("cryptengine: duplicate fd")

	// ErrDuplicateValue is returned when a close-notify or io-callback
	// registration would overwrite an existing one.
	ErrDuplicateValue = errors.New("cryptengine: value already registered")

	// ErrNotFound is returned when removing or modifying an fd the table
	// does not know about.
	ErrNotFound = errors.New("cryptengine: fd not found")

	// ErrCanceled is surfaced when a soft or hard cancel is observed at an
	// io-callback dispatch boundary.
	ErrCanceled = errors.New("cryptengine: operation canceled")

	// ErrInvalidEngine marks protocol/ordering violations from the backend:
	// malformed status lines, duplicate PLAINTEXT, out-of-order colon
	// records. It aborts the current operation.
	ErrInvalidEngine = errors.New("cryptengine: invalid engine behaviour")

	// ErrEOF names an operation that reached end of status output without
	// having recorded an error, but also without observing the SUCCESS it
	// required. No code in this package returns it: handleEOF finalises
	// results without checking whether a SUCCESS line was seen.
	ErrEOF = errors.New("cryptengine: premature end of operation")

	// ErrUnsupportedProtocol names a protocol with no engine behind it. No
	// code in this package returns it; Context.reset does not check the
	// protocol.
	ErrUnsupportedProtocol = errors.New("cryptengine: unsupported protocol")

	// ErrNotImplemented is the status of a signature whose ERRSIG line
	// reports reason code 4 (unsupported algorithm).
	ErrNotImplemented = errors.New("cryptengine: not implemented")

	// ErrUnusablePublicKey is the terminal error of an encrypt operation
	// that recorded at least one invalid recipient.
	ErrUnusablePublicKey = errors.New("cryptengine: unusable public key")

	// ErrBadPassphrase is the terminal error when passphrase collection
	// failed for one or more signers/recipients.
	ErrBadPassphrase = errors.New("cryptengine: bad passphrase")

	// ErrNoData is reported by decrypt when the input was not encrypted.
	ErrNoData = errors.New("cryptengine: no data")

	// ErrBadData marks a fatal, non-recoverable failure reported by the
	// engine; DECRYPTION_FAILED records it. (A second PLAINTEXT line is
	// reported as ErrInvalidEngine instead.)
	ErrBadData = errors.New("cryptengine: bad data")

	// ErrGeneral is the uncategorised status-line failure/error code.
	ErrGeneral = errors.New("cryptengine: general error")

	// ErrSigExpired marks a signature whose creation time has passed its
	// expiration (EXPSIG).
	ErrSigExpired = errors.New("cryptengine: signature expired")

	// ErrKeyExpired marks a signature made by a now-expired key
	// (EXPKEYSIG).
	ErrKeyExpired = errors.New("cryptengine: key expired")

	// ErrCertRevoked marks a signature made by a revoked key (REVKEYSIG),
	// or a CERT_REVOKED validity_reason.
	ErrCertRevoked = errors.New("cryptengine: certificate revoked")

	// ErrBadSignature marks a signature that failed cryptographic
	// verification (BADSIG).
	ErrBadSignature = errors.New("cryptengine: bad signature")

	// ErrNoPubkey marks a signature for which the signing key could not
	// be found (ERRSIG reason code 9).
	ErrNoPubkey = errors.New("cryptengine: no public key")

	// ErrCRLTooOld marks a signature whose validity could not be
	// established because the issuer's CRL is stale.
	ErrCRLTooOld = errors.New("cryptengine: CRL too old")
)

// OpError wraps a sentinel with the engine-reported context that produced
// it (the "where" token of a FAILURE/ERROR status line and the numeric
// errno), following the same typed error/Unwrap shape as this package's
// other sentinel-wrapping errors.
type OpError struct {
	// Where is the status-line location token, e.g. "verify.findkey".
	Where string
	// Code is the engine-reported numeric error code, 0 if not applicable.
	Code int
	// Cause is the sentinel this OpError represents.
	Cause error
}

func (e *OpError) Error() string {
	if e.Where == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Where, e.Cause.Error(), e.Code)
}

// Unwrap allows errors.Is(opErr, ErrGeneral) and friends to succeed.
func (e *OpError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *OpError with the same Cause, so two
// OpErrors built from the same sentinel but different Where/Code still
// compare equal via errors.Is when the caller only cares about the kind.
func (e *OpError) Is(target error) bool {
	var other *OpError
	if errors.As(target, &other) {
		return errors.Is(e.Cause, other.Cause)
	}
	return false
}

// WrapError wraps an error with a message, preserving the chain for
// [errors.Is]/[errors.As].
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
