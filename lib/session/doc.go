// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements delegated-authority tokens: a principal
// and an ephemeral delegate jointly create a time-bounded record that
// lets the delegate sign calls on the principal's behalf, scoped to
// one target service.
//
// Tokens are plain records at deterministic addresses, not bearer
// credentials — validation re-derives the address from the claimed
// (service, delegate, principal) triple and rejects any substituted
// record. Revocation deletes the record, which invalidates every
// subsequent use immediately.
package session
