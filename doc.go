// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package cryptengine is the concurrency and I/O substrate used to drive
// OpenPGP and S/MIME command-line backend engines (and their helper
// daemons) from a single process.
//
// # Model
//
// Callers open a [Context], which represents one sequential conversation
// with a backend engine subprocess. Starting an operation (encrypt, decrypt,
// sign, verify, import, list keys, ...) attaches an opaque op-data slot to
// the context, opens one or more pipes to the engine, and registers those
// pipes in the process-wide file-descriptor table (the [FDTable]) under the
// context's serial number. A wait loop - global, private, or
// application-supplied - polls the table's active descriptors, dispatches
// their I/O callbacks, and harvests completed contexts.
//
// The engine itself speaks a line-oriented status protocol back to the
// library; [Dispatch] and the handlers in status_parse.go turn that stream
// into typed fields folded into the op-data slot's result struct
// (verifyResult, encryptResult, signResult, importResult, keylistResult).
//
// # What this package does not do
//
// It does not implement any cryptographic primitive, does not parse OpenPGP
// packets, and does not maintain a keyring. Its only concurrency is I/O
// overlap between in-flight operations; it never schedules cryptographic
// work across cores.
package cryptengine
