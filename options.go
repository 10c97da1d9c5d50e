// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

// contextOptions holds the flags and string fields attached to a Context at
// construction time.
type contextOptions struct {
	protocol    Protocol
	subProtocol Protocol

	armor              bool
	textmode           bool
	offline            bool
	fullStatus         bool
	rawDescription     bool
	exportSessionKeys  bool
	includeKeyBlock    bool
	autoKeyImport      bool
	autoKeyRetrieve    bool
	noSymkeyCache      bool
	ignoreMDCError     bool
	noAutoCheckTrustdb bool
	procAllSigs        bool
	extendedEdit       bool

	includeCerts int
	keylistMode  KeylistMode
	pinentryMode PinentryMode

	sender             string
	overrideSessionKey string
	requestOrigin      string
	autoKeyLocate      string
	lcCtype            string
	lcMessages         string
	trustModel         string
	certExpire         string
	keyOrigin          string
	importFilter       string
	importOptions      string
	knownNotations     string

	// sigNotations is the context-level notation list attached to
	// signatures made by subsequent sign operations.
	sigNotations []*SigNotation
}

// --- Context Options ---

// ContextOption configures a Context at construction time.
type ContextOption interface {
	applyContext(*contextOptions) error
}

// contextOptionImpl implements ContextOption via a plain function value,
// the usual functional-options shape.
type contextOptionImpl struct {
	applyFunc func(*contextOptions) error
}

func (c *contextOptionImpl) applyContext(opts *contextOptions) error {
	return c.applyFunc(opts)
}

func option(f func(*contextOptions) error) ContextOption {
	return &contextOptionImpl{applyFunc: f}
}

// WithProtocol selects the engine protocol the context drives (OpenPGP,
// CMS, GPGConf, Assuan, G13, UIServer, Spawn).
func WithProtocol(p Protocol) ContextOption {
	return option(func(o *contextOptions) error {
		o.protocol = p
		return nil
	})
}

// WithSubProtocol sets the sub-protocol, used by the Assuan and Spawn
// protocols to select an inner wire format.
func WithSubProtocol(p Protocol) ContextOption {
	return option(func(o *contextOptions) error {
		o.subProtocol = p
		return nil
	})
}

// WithArmor enables ASCII-armored output.
func WithArmor(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.armor = enabled; return nil })
}

// WithTextmode enables canonical text mode (CRLF normalisation) for
// OpenPGP operations.
func WithTextmode(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.textmode = enabled; return nil })
}

// WithOffline disables network access by the engine (no keyserver or CRL
// lookups).
func WithOffline(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.offline = enabled; return nil })
}

// WithFullStatus requests the engine emit all available status lines
// rather than a minimal subset.
func WithFullStatus(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.fullStatus = enabled; return nil })
}

// WithPinentryMode selects how passphrase prompts are sourced.
func WithPinentryMode(mode PinentryMode) ContextOption {
	return option(func(o *contextOptions) error { o.pinentryMode = mode; return nil })
}

// WithKeylistMode sets the keylist-mode bitset used by subsequent keylist
// operations.
func WithKeylistMode(mode KeylistMode) ContextOption {
	return option(func(o *contextOptions) error { o.keylistMode = mode; return nil })
}

// WithIncludeCerts sets the number of certificates to include in an
// S/MIME signature (-2 = all, -1 = all except root, 0 = none).
func WithIncludeCerts(n int) ContextOption {
	return option(func(o *contextOptions) error { o.includeCerts = n; return nil })
}

// WithSender sets the Sender header value supplied to the engine.
func WithSender(sender string) ContextOption {
	return option(func(o *contextOptions) error { o.sender = sender; return nil })
}

// WithTrustModel selects the trust model name passed to the engine.
func WithTrustModel(model string) ContextOption {
	return option(func(o *contextOptions) error { o.trustModel = model; return nil })
}

// WithCertExpire sets the default certificate expiration string.
func WithCertExpire(expire string) ContextOption {
	return option(func(o *contextOptions) error { o.certExpire = expire; return nil })
}

// WithRequestOrigin tags the operation with an application-supplied
// origin string, forwarded to the engine unmodified.
func WithRequestOrigin(origin string) ContextOption {
	return option(func(o *contextOptions) error { o.requestOrigin = origin; return nil })
}

// WithAutoKeyLocate sets the auto-key-locate mechanism list.
func WithAutoKeyLocate(mechanisms string) ContextOption {
	return option(func(o *contextOptions) error { o.autoKeyLocate = mechanisms; return nil })
}

// WithRawDescription disables the engine's translation/formatting of
// passphrase-request descriptions, handing them to the pinentry verbatim.
func WithRawDescription(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.rawDescription = enabled; return nil })
}

// WithExportSessionKeys requests that a decrypt operation also report the
// message's session key.
func WithExportSessionKeys(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.exportSessionKeys = enabled; return nil })
}

// WithIncludeKeyBlock requests that a sign operation attach the signer's
// own key block to the signature.
func WithIncludeKeyBlock(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.includeKeyBlock = enabled; return nil })
}

// WithAutoKeyImport enables importing a signer's key from a signature's
// attached key block (the counterpart of WithIncludeKeyBlock) during
// verify.
func WithAutoKeyImport(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.autoKeyImport = enabled; return nil })
}

// WithAutoKeyRetrieve enables fetching an unknown signer's key from a
// keyserver or the Web Key Directory during verify.
func WithAutoKeyRetrieve(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.autoKeyRetrieve = enabled; return nil })
}

// WithNoSymkeyCache disables the engine's passphrase cache for
// symmetric-key operations.
func WithNoSymkeyCache(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.noSymkeyCache = enabled; return nil })
}

// WithIgnoreMDCError tolerates a decrypt whose modification-detection code
// is missing or invalid, instead of failing the operation.
func WithIgnoreMDCError(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.ignoreMDCError = enabled; return nil })
}

// WithNoAutoCheckTrustdb disables the engine's automatic trust-database
// consistency check.
func WithNoAutoCheckTrustdb(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.noAutoCheckTrustdb = enabled; return nil })
}

// WithProcAllSigs disables the engine's "stop at the first valid
// signature" shortcut, so verify reports every signature on the message.
func WithProcAllSigs(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.procAllSigs = enabled; return nil })
}

// WithExtendedEdit enables the extended key-edit command set.
func WithExtendedEdit(enabled bool) ContextOption {
	return option(func(o *contextOptions) error { o.extendedEdit = enabled; return nil })
}

// WithLCCtype sets the locale the engine uses to format key listings.
func WithLCCtype(locale string) ContextOption {
	return option(func(o *contextOptions) error { o.lcCtype = locale; return nil })
}

// WithLCMessages sets the locale the engine uses for diagnostic messages.
func WithLCMessages(locale string) ContextOption {
	return option(func(o *contextOptions) error { o.lcMessages = locale; return nil })
}

// WithKeyOrigin tags subsequently imported keys with the given origin
// (e.g. "wkd", "keyserver"), passed to the engine's --key-origin option.
func WithKeyOrigin(origin string) ContextOption {
	return option(func(o *contextOptions) error { o.keyOrigin = origin; return nil })
}

// WithImportFilter sets the engine's --import-filter expression, applied
// to keys as they are imported.
func WithImportFilter(filter string) ContextOption {
	return option(func(o *contextOptions) error { o.importFilter = filter; return nil })
}

// WithImportOptions sets the engine's --import-options flag list.
func WithImportOptions(options string) ContextOption {
	return option(func(o *contextOptions) error { o.importOptions = options; return nil })
}

// WithKnownNotations registers notation names the engine should treat as
// known (and therefore not flag as suspicious) during verify.
func WithKnownNotations(notations string) ContextOption {
	return option(func(o *contextOptions) error { o.knownNotations = notations; return nil })
}

// WithOverrideSessionKey supplies a session key directly, bypassing the
// engine's own key lookup for decrypt.
func WithOverrideSessionKey(sessionKey string) ContextOption {
	return option(func(o *contextOptions) error { o.overrideSessionKey = sessionKey; return nil })
}

// resolveContextOptions applies ContextOption instances, starting from the
// documented defaults (pinentry mode "default", no flags set).
func resolveContextOptions(opts []ContextOption) (*contextOptions, error) {
	cfg := &contextOptions{
		protocol:     ProtocolOpenPGP,
		pinentryMode: PinentryModeDefault,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyContext(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
