// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket implements the service's Unix-socket protocol: one
// signed CBOR request and one CBOR response per connection. Request
// envelopes are Ed25519-signed by the caller and verified before
// dispatch; delegated requests additionally carry the principal and
// delegation token address for the authorization gate to check.
package socket
