// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the principal identity type used across
// the system: a raw Ed25519 public key with a canonical hex text
// form.
//
// Principals, participants, delegates, and the service itself are all
// identified this way. Callers prove an identity by signing request
// payloads with the matching private key; nothing in the system ever
// trusts a bare identity claim without a signature check.
package identity
