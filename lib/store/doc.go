// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists flat binary records keyed by deterministic
// addresses.
//
// The execution model is strictly sequential per call: a handler opens
// one Update transaction, reads and validates every record it needs,
// then writes. SQLite's IMMEDIATE transactions give serializability
// across competing callers — a call that loses a race observes stale
// state inside its transaction and fails validation; nothing is ever
// partially applied.
package store
