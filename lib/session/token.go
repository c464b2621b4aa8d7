// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// Validity policy. Fixed constants, not negotiable per call beyond
// the maximum.
const (
	// MaxValidity is the longest a delegation may last.
	MaxValidity = 7 * 24 * time.Hour

	// DefaultValidity applies when a create call leaves the expiry
	// unspecified.
	DefaultValidity = time.Hour
)

// KindToken is the address derivation kind for delegation tokens.
const KindToken = "delegation-token"

// Token is the persisted delegation record: authorization for an
// ephemeral delegate identity to act as a principal against one
// target service, until ValidUntil.
type Token struct {
	// Principal is the long-lived identity being delegated.
	Principal identity.PublicKey `cbor:"1,keyasint"`

	// Service is the target service this delegation is scoped to. A
	// token for one service is useless against another.
	Service identity.PublicKey `cbor:"2,keyasint"`

	// Delegate is the ephemeral identity authorized to sign on the
	// principal's behalf.
	Delegate identity.PublicKey `cbor:"3,keyasint"`

	// ValidUntil is a Unix timestamp (seconds). The token is usable
	// through this second: now == ValidUntil passes, now > ValidUntil
	// does not.
	ValidUntil int64 `cbor:"4,keyasint"`

	// CreatedAt is a Unix timestamp (seconds). Audit only.
	CreatedAt int64 `cbor:"5,keyasint"`

	// TopUp is the resource top-up granted to the delegate at
	// creation, recorded for audit. The transfer mechanics live
	// outside this subsystem.
	TopUp uint64 `cbor:"6,keyasint,omitempty"`
}

// Errors returned by token creation and validation. Each §4.1 gate
// check fails with its own sentinel so callers can tell a mis-scoped
// token from an expired one.
var (
	ErrValidityNotFuture = errors.New("session: valid_until is not in the future")
	ErrValidityTooLong   = errors.New("session: valid_until exceeds the 7-day maximum")
	ErrTokenExists       = errors.New("session: delegation token already exists")
	ErrTokenNotFound     = errors.New("session: delegation token not found or revoked")
	ErrWrongOwner        = errors.New("session: token record not written by the token store")
	ErrAddressMismatch   = errors.New("session: token address does not match its derivation")
	ErrPrincipalMismatch = errors.New("session: token principal does not match")
	ErrServiceMismatch   = errors.New("session: token is scoped to a different service")
	ErrDelegateMismatch  = errors.New("session: caller is not the token's delegate")
	ErrTokenExpired      = errors.New("session: delegation token has expired")
	ErrNotPrincipal      = errors.New("session: only the principal may revoke")
)

// TokenAddress derives a token's storage address. The seed order
// (service, delegate, principal) is fixed; the derivation is
// injective per triple, so recomputing it detects record
// substitution.
func TokenAddress(service, delegate, principal identity.PublicKey) address.Address {
	return address.Derive(KindToken, service[:], delegate[:], principal[:])
}

// Validate runs the full delegation checklist against the record at
// tokenAddr, inside the caller's transaction:
//
//  1. a record exists there,
//  2. it was written by the token store (storeOwner),
//  3. its address matches the derivation for
//     (service, delegate, principal),
//  4. its principal, service, and delegate fields bind exactly,
//  5. it has not expired at now.
//
// Returns the decoded token on success. Validate never mutates state.
func Validate(tx *store.Tx, tokenAddr address.Address, delegate, principal, service, storeOwner identity.PublicKey, now time.Time) (*Token, error) {
	record, found, err := tx.Get(tokenAddr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrTokenNotFound
	}
	if record.Owner != storeOwner {
		return nil, ErrWrongOwner
	}

	var token Token
	if err := codec.Unmarshal(record.Data, &token); err != nil {
		return nil, fmt.Errorf("session: decoding token record: %w", err)
	}

	if TokenAddress(token.Service, token.Delegate, token.Principal) != tokenAddr {
		return nil, ErrAddressMismatch
	}
	if token.Principal != principal {
		return nil, ErrPrincipalMismatch
	}
	if token.Service != service {
		return nil, ErrServiceMismatch
	}
	if token.Delegate != delegate {
		return nil, ErrDelegateMismatch
	}
	if now.Unix() > token.ValidUntil {
		return nil, ErrTokenExpired
	}

	return &token, nil
}
