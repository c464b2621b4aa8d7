// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"errors"
	"fmt"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Envelope verification errors.
var (
	ErrMissingCaller      = errors.New("socket: request has no caller identity")
	ErrMissingSignature   = errors.New("socket: request has no signature")
	ErrBadSignature       = errors.New("socket: request signature verification failed")
	ErrMissingCoSignature = errors.New("socket: request names a co-signer but has no co-signature")
	ErrBadCoSignature     = errors.New("socket: request co-signature verification failed")
)

// Request is the wire-format envelope for all socket protocol
// requests. The caller signs the envelope with its Ed25519 key; the
// server verifies the signature against the caller identity before
// any dispatch, so handlers only ever see authenticated requests.
//
// A request acting under delegation names the principal and the
// delegation token address; the signature still comes from the
// caller (the delegate), and the token's validity is checked by the
// authorization gate inside the handler's transaction.
type Request struct {
	Action string           `cbor:"action"`
	Params codec.RawMessage `cbor:"params,omitempty"`

	// Caller is the identity whose key signed this request.
	Caller identity.PublicKey `cbor:"caller"`

	// Principal and Token are set for delegated requests. Principal
	// is the identity the caller acts for; Token is the delegation
	// token record address. Both zero for direct requests.
	Principal identity.PublicKey `cbor:"principal,omitempty"`
	Token     address.Address    `cbor:"token,omitempty"`

	// CoSigner and CoSignature carry a second endorsement for actions
	// that require two-party consent, such as delegation token
	// creation (the delegate must consent to acting for the
	// principal). The co-signature covers the same payload as the
	// caller's signature. Both zero for single-signer requests.
	CoSigner    identity.PublicKey `cbor:"co_signer,omitempty"`
	CoSignature []byte             `cbor:"co_signature,omitempty"`

	// Signature is the caller's Ed25519 signature over SigningBytes.
	Signature []byte `cbor:"signature"`
}

// SigningBytes returns the deterministic encoding the signatures
// cover: every envelope field except the signatures themselves. The
// co-signer identity is included, so neither party's signature
// survives stripping or swapping the other's identity. Signer and
// verifier both use deterministic CBOR, so the bytes agree without
// any canonicalization step.
func (r *Request) SigningBytes() ([]byte, error) {
	payload := struct {
		Action    string             `cbor:"1,keyasint"`
		Params    []byte             `cbor:"2,keyasint"`
		Caller    identity.PublicKey `cbor:"3,keyasint"`
		Principal identity.PublicKey `cbor:"4,keyasint"`
		Token     address.Address    `cbor:"5,keyasint"`
		CoSigner  identity.PublicKey `cbor:"6,keyasint"`
	}{
		Action:    r.Action,
		Params:    r.Params,
		Caller:    r.Caller,
		Principal: r.Principal,
		Token:     r.Token,
		CoSigner:  r.CoSigner,
	}
	data, err := codec.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("socket: encoding signing payload: %w", err)
	}
	return data, nil
}

// Verify checks the envelope signature (and co-signature, when
// present) and returns the authority claim the request carries: a
// direct claim for the caller, or a delegated claim naming the
// principal and token.
func (r *Request) Verify() (authority.Authority, error) {
	if r.Caller.IsZero() {
		return authority.Authority{}, ErrMissingCaller
	}
	if len(r.Signature) == 0 {
		return authority.Authority{}, ErrMissingSignature
	}
	payload, err := r.SigningBytes()
	if err != nil {
		return authority.Authority{}, err
	}
	if !r.Caller.Verify(payload, r.Signature) {
		return authority.Authority{}, ErrBadSignature
	}

	auth := authority.Direct(r.Caller)
	if !r.Principal.IsZero() {
		auth = authority.Delegated(r.Caller, r.Principal, r.Token)
	}

	if !r.CoSigner.IsZero() {
		if len(r.CoSignature) == 0 {
			return authority.Authority{}, ErrMissingCoSignature
		}
		if !r.CoSigner.Verify(payload, r.CoSignature) {
			return authority.Authority{}, ErrBadCoSignature
		}
		auth = auth.WithCoSigner(r.CoSigner)
	}
	return auth, nil
}

// Response is the wire-format envelope for all socket protocol
// responses. Handlers return a result value (or nil) and an error;
// the server wraps these into a Response before encoding.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}
