// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for every persisted
// record and every socket protocol message.
//
// All encoding goes through one deterministic configuration so that
// the same logical value always produces identical bytes. Consumers
// import only this package, never fxamacker/cbor directly.
package codec
