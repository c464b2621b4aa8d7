// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// retroflow-service runs the retrospective workflow ledger behind a
// Unix socket. It owns the SQLite record store, resolves delegated
// authority through stored session tokens, and exposes every workflow
// operation as a signed CBOR socket action.
package main
