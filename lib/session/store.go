// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// Store creates and revokes delegation tokens. Co-signature
// enforcement (both principal and delegate must sign a create call)
// happens at the request envelope layer before Create is reached;
// Store trusts its arguments to be authenticated identities.
type Store struct {
	records *store.Store
	owner   identity.PublicKey
	clock   clock.Clock
	logger  *slog.Logger
}

// Config holds the parameters for a token store.
type Config struct {
	// Records is the backing record ledger.
	Records *store.Store

	// Owner is the token store's own service identity, written as
	// the storage owner of every token record. Validation rejects
	// token records written by anyone else.
	Owner identity.PublicKey

	// Clock provides the current time for validity checks.
	Clock clock.Clock

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// New creates a token store.
func New(cfg Config) (*Store, error) {
	if cfg.Records == nil {
		return nil, fmt.Errorf("session: Records is required")
	}
	if cfg.Owner.IsZero() {
		return nil, fmt.Errorf("session: Owner is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("session: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		records: cfg.Records,
		owner:   cfg.Owner,
		clock:   cfg.Clock,
		logger:  logger,
	}, nil
}

// Owner returns the store's service identity (the expected storage
// owner of token records).
func (s *Store) Owner() identity.PublicKey {
	return s.owner
}

// Create writes a new delegation token for (principal, delegate,
// service). A zero validUntil selects the default one-hour validity;
// otherwise validUntil must lie in (now, now + 7 days]. topUp is
// recorded on the token for audit.
//
// Returns the token's derived address. Fails with ErrTokenExists if a
// live token for the triple already exists — revoke it first. An
// expired token does not block the slot: its record is overwritten
// without an explicit revocation.
func (s *Store) Create(ctx context.Context, principal, delegate, service identity.PublicKey, validUntil int64, topUp uint64) (address.Address, error) {
	if principal.IsZero() || delegate.IsZero() || service.IsZero() {
		return address.Address{}, fmt.Errorf("session: principal, delegate, and service are all required")
	}

	now := s.clock.Now().Unix()
	if validUntil == 0 {
		validUntil = now + int64(DefaultValidity.Seconds())
	}
	if validUntil <= now {
		return address.Address{}, ErrValidityNotFuture
	}
	if validUntil > now+int64(MaxValidity.Seconds()) {
		return address.Address{}, ErrValidityTooLong
	}

	token := Token{
		Principal:  principal,
		Service:    service,
		Delegate:   delegate,
		ValidUntil: validUntil,
		CreatedAt:  now,
		TopUp:      topUp,
	}
	data, err := codec.Marshal(&token)
	if err != nil {
		return address.Address{}, fmt.Errorf("session: encoding token: %w", err)
	}

	addr := TokenAddress(service, delegate, principal)
	err = s.records.Update(ctx, func(tx *store.Tx) error {
		record, found, err := tx.Get(addr)
		if err != nil {
			return err
		}
		if found {
			if record.Owner != s.owner {
				return ErrWrongOwner
			}
			var existing Token
			if err := codec.Unmarshal(record.Data, &existing); err != nil {
				return fmt.Errorf("session: decoding token record: %w", err)
			}
			if now <= existing.ValidUntil {
				return ErrTokenExists
			}
			// Expired: the slot is reclaimed by the new token.
		}
		return tx.Put(addr, s.owner, data)
	})
	if err != nil {
		return address.Address{}, err
	}

	s.logger.Info("delegation token created",
		"principal", principal,
		"delegate", delegate,
		"valid_until", validUntil,
	)
	return addr, nil
}

// Revoke deletes the token for (principal, delegate, service).
// Only the principal may revoke; caller must be the authenticated
// principal identity. Revocation is unconditional — no grace period —
// and reclaims the record's storage, so any later use fails with
// ErrTokenNotFound even if the token had not yet expired.
func (s *Store) Revoke(ctx context.Context, caller, delegate, service identity.PublicKey) error {
	addr := TokenAddress(service, delegate, caller)

	err := s.records.Update(ctx, func(tx *store.Tx) error {
		record, found, err := tx.Get(addr)
		if err != nil {
			return err
		}
		if !found {
			return ErrTokenNotFound
		}
		if record.Owner != s.owner {
			return ErrWrongOwner
		}

		var token Token
		if err := codec.Unmarshal(record.Data, &token); err != nil {
			return fmt.Errorf("session: decoding token record: %w", err)
		}
		if token.Principal != caller {
			return ErrNotPrincipal
		}

		return tx.Delete(addr)
	})
	if err != nil {
		return err
	}

	s.logger.Info("delegation token revoked",
		"principal", caller,
		"delegate", delegate,
	)
	return nil
}
