// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// Read accessors. Each runs in its own read transaction and returns
// the record's not-found sentinel when the address is vacant.

// GetRegistry returns a principal's workflow registry.
func (e *Engine) GetRegistry(ctx context.Context, principal identity.PublicKey) (*retro.Registry, error) {
	return view[retro.Registry](ctx, e, retro.RegistryAddress(principal), ErrRegistryNotFound)
}

// GetWorkflow returns the workflow at addr.
func (e *Engine) GetWorkflow(ctx context.Context, addr address.Address) (*retro.Workflow, error) {
	return view[retro.Workflow](ctx, e, addr, ErrWorkflowNotFound)
}

// GetMembership returns a participant's ledger entry in a workflow.
func (e *Engine) GetMembership(ctx context.Context, workflow address.Address, participant identity.PublicKey) (*retro.Membership, error) {
	return view[retro.Membership](ctx, e, retro.MembershipAddress(workflow, participant), ErrMembershipNotFound)
}

// GetNote returns a note by workflow and sequential ID.
func (e *Engine) GetNote(ctx context.Context, workflow address.Address, noteID uint64) (*retro.Note, error) {
	return view[retro.Note](ctx, e, retro.NoteAddress(workflow, noteID), ErrNoteNotFound)
}

// GetGroup returns a group by workflow and sequential ID.
func (e *Engine) GetGroup(ctx context.Context, workflow address.Address, groupID uint64) (*retro.Group, error) {
	return view[retro.Group](ctx, e, retro.GroupAddress(workflow, groupID), ErrGroupNotFound)
}

// GetVoteRecord returns one participant's accumulated vote on one
// group, or nil when the participant has not voted on it.
func (e *Engine) GetVoteRecord(ctx context.Context, workflow address.Address, participant identity.PublicKey, groupID uint64) (*retro.VoteRecord, error) {
	return view[retro.VoteRecord](ctx, e, retro.VoteAddress(workflow, participant, groupID), nil)
}

// GetActionItem returns an action item by workflow and sequential ID.
func (e *Engine) GetActionItem(ctx context.Context, workflow address.Address, itemID uint64) (*retro.ActionItem, error) {
	return view[retro.ActionItem](ctx, e, retro.ActionItemAddress(workflow, itemID), ErrActionItemNotFound)
}

// GetVerificationVote returns a verifier's vote on an action item, or
// nil when the verifier has not voted.
func (e *Engine) GetVerificationVote(ctx context.Context, workflow address.Address, itemID uint64, verifier identity.PublicKey) (*retro.VerificationVote, error) {
	itemAddr := retro.ActionItemAddress(workflow, itemID)
	return view[retro.VerificationVote](ctx, e, retro.VerificationVoteAddress(itemAddr, verifier), nil)
}

// IsAllowlisted reports whether participant holds an allowed entry on
// the workflow's allowlist.
func (e *Engine) IsAllowlisted(ctx context.Context, workflow address.Address, participant identity.PublicKey) (bool, error) {
	var allowed bool
	err := e.records.View(ctx, func(tx *store.Tx) error {
		var err error
		allowed, err = isAllowlisted(tx, workflow, participant)
		return err
	})
	return allowed, err
}

// view is load inside a single-record read transaction.
func view[T any](ctx context.Context, e *Engine, addr address.Address, missing error) (*T, error) {
	var value *T
	err := e.records.View(ctx, func(tx *store.Tx) error {
		var err error
		value, err = load[T](tx, addr, missing)
		return err
	})
	return value, err
}
