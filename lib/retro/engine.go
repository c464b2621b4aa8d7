// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// Engine implements every workflow operation. Each exported method is
// one external call: it resolves the caller's authority through the
// gate, validates exhaustively against a consistent snapshot, then
// mutates — all inside a single store transaction, so a failed call
// leaves no trace.
type Engine struct {
	records *store.Store
	gate    *authority.Gate
	clock   clock.Clock
	logger  *slog.Logger

	// self is the engine's service identity, written as the storage
	// owner of every ledger record.
	self identity.PublicKey
}

// Config holds the parameters for creating an Engine.
type Config struct {
	// Records is the backing record ledger.
	Records *store.Store

	// Gate resolves caller authority (direct or delegated) for
	// every operation.
	Gate *authority.Gate

	// Clock provides record timestamps.
	Clock clock.Clock

	// Self is the service identity that owns ledger records.
	Self identity.PublicKey

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Records == nil {
		return nil, fmt.Errorf("retro: Records is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("retro: Gate is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("retro: Clock is required")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("retro: Self identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		records: cfg.Records,
		gate:    cfg.Gate,
		clock:   cfg.Clock,
		logger:  logger,
		self:    cfg.Self,
	}, nil
}

// load reads and decodes the record at addr, or returns missing when
// no record exists there.
func load[T any](tx *store.Tx, addr address.Address, missing error) (*T, error) {
	record, found, err := tx.Get(addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, missing
	}
	var value T
	if err := codec.Unmarshal(record.Data, &value); err != nil {
		return nil, fmt.Errorf("retro: decoding record %s: %w", addr, err)
	}
	return &value, nil
}

// save encodes value and writes it at addr, owned by the engine.
func (e *Engine) save(tx *store.Tx, addr address.Address, value any) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("retro: encoding record %s: %w", addr, err)
	}
	return tx.Put(addr, e.self, data)
}

// insert is save for records that must not already exist.
func (e *Engine) insert(tx *store.Tx, addr address.Address, value any) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("retro: encoding record %s: %w", addr, err)
	}
	return tx.Insert(addr, e.self, data)
}

// isAllowlisted reports whether participant holds an allowed
// allowlist entry for the workflow. The allowlist is authoritative
// for every participant-gated action.
func isAllowlisted(tx *store.Tx, workflow address.Address, participant identity.PublicKey) (bool, error) {
	record, found, err := tx.Get(retro.AllowlistAddress(workflow, participant))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	var entry retro.AllowlistEntry
	if err := codec.Unmarshal(record.Data, &entry); err != nil {
		return false, fmt.Errorf("retro: decoding allowlist entry: %w", err)
	}
	return entry.Allowed, nil
}

// requireAllowlisted is the common guard for participant actions.
func requireAllowlisted(tx *store.Tx, workflow address.Address, participant identity.PublicKey) error {
	allowed, err := isAllowlisted(tx, workflow, participant)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNotAllowlisted
	}
	return nil
}

// getOrCreateMembership returns the participant's membership record,
// initializing it in place if its storage is still empty. On
// creation, the participant cap is enforced and the workflow's
// participant counter is incremented; the caller is responsible for
// saving both records it was handed.
func getOrCreateMembership(tx *store.Tx, workflowAddr address.Address, workflow *retro.Workflow, participant identity.PublicKey) (*retro.Membership, bool, error) {
	addr := retro.MembershipAddress(workflowAddr, participant)
	record, found, err := tx.Get(addr)
	if err != nil {
		return nil, false, err
	}
	if found {
		var membership retro.Membership
		if err := codec.Unmarshal(record.Data, &membership); err != nil {
			return nil, false, fmt.Errorf("retro: decoding membership: %w", err)
		}
		return &membership, false, nil
	}

	if workflow.ParticipantCount >= retro.MaxParticipants {
		return nil, false, ErrParticipantCapReached
	}
	workflow.ParticipantCount++
	return &retro.Membership{
		Workflow:    workflowAddr,
		Participant: participant,
	}, true, nil
}

// addUint8 is overflow-checked addition for credit counters.
func addUint8(a, b uint8) (uint8, bool) {
	sum := a + b
	return sum, sum >= a
}

// addUint64 is overflow-checked addition for tallies and sequence
// counters.
func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
