// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package retro defines the persisted record types of the
// retrospective workflow ledger: the per-principal registry, the
// workflow aggregate, allowlist and membership entries, notes,
// groups, vote records, action items, and verification votes —
// together with the stage machine, the size limits, the deterministic
// address derivation for each record type, and the socket action
// names.
//
// Records are CBOR-encoded with integer keys (compact, stable across
// field renames) and stored at addresses derived from their parent
// chain. The types here carry no behavior beyond encoding and
// address derivation; all validation lives in lib/retro.
package retro
