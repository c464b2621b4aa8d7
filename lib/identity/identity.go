// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PublicKey identifies a principal, participant, or service: a raw
// Ed25519 public key. The canonical text form is 64 lowercase hex
// characters.
//
// PublicKey is a value type. The zero value means "no identity" and
// is never a valid signer; record initialization checks rely on this
// (a zero-valued field marks uninitialized storage).
type PublicKey [ed25519.PublicKeySize]byte

// IsZero reports whether k is the zero identity.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// String returns the canonical hex form.
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler. PublicKey fields
// serialize as hex text in CBOR records.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parse decodes the canonical hex form of a public key.
func Parse(s string) (PublicKey, error) {
	var key PublicKey
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("identity: parsing public key: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return key, fmt.Errorf("identity: public key is %d bytes, want %d", len(decoded), ed25519.PublicKeySize)
	}
	copy(key[:], decoded)
	return key, nil
}

// FromRaw wraps a stdlib ed25519.PublicKey. Returns an error on
// unexpected key length rather than silently truncating.
func FromRaw(raw ed25519.PublicKey) (PublicKey, error) {
	var key PublicKey
	if len(raw) != ed25519.PublicKeySize {
		return key, fmt.Errorf("identity: public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	copy(key[:], raw)
	return key, nil
}

// Raw returns the key as a stdlib ed25519.PublicKey for signature
// verification.
func (k PublicKey) Raw() ed25519.PublicKey {
	return ed25519.PublicKey(k[:])
}

// Verify reports whether signature is a valid Ed25519 signature by k
// over payload. A zero identity verifies nothing.
func (k PublicKey) Verify(payload, signature []byte) bool {
	if k.IsZero() {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.Raw(), payload, signature)
}
