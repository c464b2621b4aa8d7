// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Query handlers return the stored record directly; the schema
// structs are the wire format. Queries are open to any authenticated
// caller — the ledger holds no secrets, only attributable state.

func (s *retroService) handleShowWorkflow(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p workflowParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return s.engine.GetWorkflow(ctx, p.Workflow)
}

type membershipParams struct {
	Workflow    address.Address    `cbor:"workflow"`
	Participant identity.PublicKey `cbor:"participant"`
}

func (s *retroService) handleShowMembership(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p membershipParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return s.engine.GetMembership(ctx, p.Workflow, p.Participant)
}

type showNoteParams struct {
	Workflow address.Address `cbor:"workflow"`
	NoteID   uint64          `cbor:"note_id"`
}

func (s *retroService) handleShowNote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p showNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return s.engine.GetNote(ctx, p.Workflow, p.NoteID)
}

type showGroupParams struct {
	Workflow address.Address `cbor:"workflow"`
	GroupID  uint64          `cbor:"group_id"`
}

func (s *retroService) handleShowGroup(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p showGroupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return s.engine.GetGroup(ctx, p.Workflow, p.GroupID)
}

type showActionItemParams struct {
	Workflow address.Address `cbor:"workflow"`
	ItemID   uint64          `cbor:"item_id"`
}

func (s *retroService) handleShowActionItem(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p showActionItemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return s.engine.GetActionItem(ctx, p.Workflow, p.ItemID)
}
