// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"errors"
	"fmt"

	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/session"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// ErrNoCaller is returned when the authority carries no authenticated
// caller identity at all.
var ErrNoCaller = errors.New("authority: missing caller identity")

// Gate resolves Authority claims into effective principals. It is
// invoked once per external call, before any target-component
// validation, and never mutates state.
type Gate struct {
	// service is the target-service identity delegation tokens must
	// be scoped to.
	service identity.PublicKey

	// tokenOwner is the delegation token store's identity: the
	// required storage owner of any token record the gate reads.
	tokenOwner identity.PublicKey

	clock clock.Clock
}

// NewGate creates a gate for one target service. service is the
// identity workflow calls are addressed to; tokenOwner is the token
// store's record-writing identity (usually the same service identity).
func NewGate(service, tokenOwner identity.PublicKey, clk clock.Clock) (*Gate, error) {
	if service.IsZero() {
		return nil, fmt.Errorf("authority: service identity is required")
	}
	if tokenOwner.IsZero() {
		return nil, fmt.Errorf("authority: token owner identity is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("authority: clock is required")
	}
	return &Gate{service: service, tokenOwner: tokenOwner, clock: clk}, nil
}

// Resolve returns the effective acting principal for an authority
// claim. Direct claims resolve immediately to the caller. Delegated
// claims are checked against the token record inside the caller's
// transaction: storage owner, address derivation, scope binding
// (principal × service × delegate), and expiry — each failure is a
// distinct sentinel from lib/session.
func (g *Gate) Resolve(tx *store.Tx, a Authority) (identity.PublicKey, error) {
	if a.caller.IsZero() {
		return identity.PublicKey{}, ErrNoCaller
	}

	if !a.delegated {
		return a.caller, nil
	}

	_, err := session.Validate(tx, a.token, a.caller, a.principal, g.service, g.tokenOwner, g.clock.Now())
	if err != nil {
		return identity.PublicKey{}, err
	}
	return a.principal, nil
}
