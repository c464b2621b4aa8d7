// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Size is the length of an address in bytes.
const Size = 32

// Address is the storage key of a record: a BLAKE3 digest over the
// record's seed tuple (kind, parent identifiers, index). Any party
// that knows an entity's parent chain can re-derive its address, and
// distinct seed tuples never collide in practice, so the address
// doubles as the entity's identity.
type Address [Size]byte

// IsZero reports whether a is the zero address. No derived address is
// ever zero-valued, so the zero value safely means "no address".
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the canonical hex form.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler. Address fields
// serialize as hex text in CBOR records.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes the canonical hex form of an address.
func Parse(s string) (Address, error) {
	var a Address
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("address: parsing: %w", err)
	}
	if len(decoded) != Size {
		return a, fmt.Errorf("address: %d bytes, want %d", len(decoded), Size)
	}
	copy(a[:], decoded)
	return a, nil
}

// Derive computes the address for a seed tuple. The kind string names
// the record type ("workflow", "note", "delegation-token", ...); parts
// are the parent identifiers and indices, in a fixed documented order
// per record type.
//
// Every component is length-prefixed (uvarint) before hashing, so
// tuples like ("ab","c") and ("a","bc") hash differently. The same
// tuple always yields the same address.
func Derive(kind string, parts ...[]byte) Address {
	hasher := blake3.New()

	var prefix [binary.MaxVarintLen64]byte

	writePart := func(part []byte) {
		n := binary.PutUvarint(prefix[:], uint64(len(part)))
		hasher.Write(prefix[:n])
		hasher.Write(part)
	}

	writePart([]byte(kind))
	for _, part := range parts {
		writePart(part)
	}

	var a Address
	hasher.Digest().Read(a[:])
	return a
}

// Uint64 encodes a record index for use as a Derive part. Indices are
// encoded little-endian, fixed width, so index parts are unambiguous.
func Uint64(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}
