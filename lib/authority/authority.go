// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Authority is a caller's claim about who it is acting as: either the
// authenticated caller itself, or a principal reached through a
// delegation token. Exactly one constructor applies per call; the
// gate resolves the claim once and downstream code consumes only the
// effective principal.
type Authority struct {
	caller    identity.PublicKey
	delegated bool
	principal identity.PublicKey
	token     address.Address
	coSigner  identity.PublicKey
}

// Direct asserts no delegation: the caller acts as itself.
func Direct(caller identity.PublicKey) Authority {
	return Authority{caller: caller}
}

// Delegated asserts that caller (the delegate) acts as principal via
// the delegation token record at token.
func Delegated(caller, principal identity.PublicKey, token address.Address) Authority {
	return Authority{
		caller:    caller,
		delegated: true,
		principal: principal,
		token:     token,
	}
}

// Caller returns the authenticated signer of the call (the delegate,
// when delegated).
func (a Authority) Caller() identity.PublicKey {
	return a.caller
}

// IsDelegated reports whether the claim goes through a token.
func (a Authority) IsDelegated() bool {
	return a.delegated
}

// WithCoSigner returns a copy of the claim carrying a second
// authenticated signer. The transport layer attaches the co-signer
// after verifying its signature; actions that require two-party
// consent check CoSigner against the expected identity.
func (a Authority) WithCoSigner(coSigner identity.PublicKey) Authority {
	a.coSigner = coSigner
	return a
}

// CoSigner returns the second authenticated signer, or the zero key if
// the call carried no co-signature.
func (a Authority) CoSigner() identity.PublicKey {
	return a.coSigner
}
