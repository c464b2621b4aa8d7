// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Record kind strings. Part of each record's address derivation;
// never change these.
const (
	KindRegistry         = "registry"
	KindWorkflow         = "workflow"
	KindAllowlist        = "allowlist"
	KindMembership       = "membership"
	KindNote             = "note"
	KindGroup            = "group"
	KindVote             = "vote"
	KindActionItem       = "action-item"
	KindVerificationVote = "verification-vote"
)

// RegistryAddress derives the registry address for a principal.
func RegistryAddress(principal identity.PublicKey) address.Address {
	return address.Derive(KindRegistry, principal[:])
}

// WorkflowAddress derives a workflow address from its owning
// principal and registry index.
func WorkflowAddress(principal identity.PublicKey, index uint64) address.Address {
	return address.Derive(KindWorkflow, principal[:], address.Uint64(index))
}

// AllowlistAddress derives the allowlist entry address for a
// participant in a workflow.
func AllowlistAddress(workflow address.Address, participant identity.PublicKey) address.Address {
	return address.Derive(KindAllowlist, workflow[:], participant[:])
}

// MembershipAddress derives the membership ledger address for a
// participant in a workflow.
func MembershipAddress(workflow address.Address, participant identity.PublicKey) address.Address {
	return address.Derive(KindMembership, workflow[:], participant[:])
}

// NoteAddress derives a note address from its workflow and sequential
// note ID.
func NoteAddress(workflow address.Address, noteID uint64) address.Address {
	return address.Derive(KindNote, workflow[:], address.Uint64(noteID))
}

// GroupAddress derives a group address from its workflow and
// sequential group ID.
func GroupAddress(workflow address.Address, groupID uint64) address.Address {
	return address.Derive(KindGroup, workflow[:], address.Uint64(groupID))
}

// VoteAddress derives the vote record address for one participant's
// votes on one group.
func VoteAddress(workflow address.Address, participant identity.PublicKey, groupID uint64) address.Address {
	return address.Derive(KindVote, workflow[:], participant[:], address.Uint64(groupID))
}

// ActionItemAddress derives an action item address from its workflow
// and sequential item ID.
func ActionItemAddress(workflow address.Address, itemID uint64) address.Address {
	return address.Derive(KindActionItem, workflow[:], address.Uint64(itemID))
}

// VerificationVoteAddress derives the vote address for one verifier
// on one action item. Its occupancy is the duplicate-vote check.
func VerificationVoteAddress(item address.Address, verifier identity.PublicKey) address.Address {
	return address.Derive(KindVerificationVote, item[:], verifier[:])
}
