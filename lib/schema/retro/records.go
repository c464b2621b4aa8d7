// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Registry is the per-principal workflow counter. Workflow addresses
// derive from (principal, WorkflowCount) at creation time, so the
// counter is read and incremented in the same transaction that
// creates the workflow.
//
// One Registry exists per principal, created explicitly by
// init_registry; it is never deleted and the count only increases.
type Registry struct {
	// Principal is the owning principal.
	Principal identity.PublicKey `cbor:"1,keyasint"`

	// WorkflowCount is the number of workflows created so far, and
	// the index the next workflow will take.
	WorkflowCount uint64 `cbor:"2,keyasint"`
}

// Workflow is the aggregate root of one retrospective: stage, closure
// flag, configuration, and running counters. Child records (notes,
// groups, votes, memberships, action items) name this workflow's
// address in their own derivation seeds.
type Workflow struct {
	// Principal is the owning principal (registry owner).
	Principal identity.PublicKey `cbor:"1,keyasint"`

	// Facilitator runs the workflow: stage advances, closure,
	// allowlist management, and action item creation are
	// facilitator-only. Set to the principal at creation.
	Facilitator identity.PublicKey `cbor:"2,keyasint"`

	// Index is this workflow's position in the principal's registry.
	Index uint64 `cbor:"3,keyasint"`

	// Stage is the current phase. Only advances, one step at a time.
	Stage Stage `cbor:"4,keyasint"`

	// Closed is the one-way closure flag. Once true, notes, groups,
	// and votes are frozen permanently; only the action item
	// subsystem remains active.
	Closed bool `cbor:"5,keyasint"`

	// Categories are the note categories (1–5 entries). Notes
	// reference a category by index.
	Categories []string `cbor:"6,keyasint"`

	// NoteCap is the per-participant note limit.
	NoteCap uint8 `cbor:"7,keyasint"`

	// CreditBudget is the per-participant voting credit budget.
	CreditBudget uint8 `cbor:"8,keyasint"`

	// AllowlistEnabled gates the allowlist join path and allowlist
	// management calls.
	AllowlistEnabled bool `cbor:"9,keyasint"`

	// OpenJoin gates the open join path. May be enabled together
	// with AllowlistEnabled; each join path checks only its own
	// flag.
	OpenJoin bool `cbor:"10,keyasint"`

	// ParticipantCount is the number of membership records created.
	ParticipantCount uint32 `cbor:"11,keyasint"`

	// NoteCount, GroupCount, and ActionItemCount are the next
	// sequential child IDs.
	NoteCount       uint64 `cbor:"12,keyasint"`
	GroupCount      uint64 `cbor:"13,keyasint"`
	ActionItemCount uint64 `cbor:"14,keyasint"`

	// CreatedAt and StageChangedAt are Unix timestamps (seconds).
	CreatedAt      int64 `cbor:"15,keyasint"`
	StageChangedAt int64 `cbor:"16,keyasint"`
}

// AllowlistEntry marks a participant as admitted to a workflow. The
// allowlist is authoritative for every participant-gated action: note
// authorship, grouping, voting, and action item owner/verifier
// eligibility all require an entry with Allowed set.
type AllowlistEntry struct {
	Workflow    address.Address    `cbor:"1,keyasint"`
	Participant identity.PublicKey `cbor:"2,keyasint"`
	Allowed     bool               `cbor:"3,keyasint"`
}

// Membership is the per-participant ledger entry: notes submitted,
// voting credits spent, and the completion score earned from verified
// action items. CreditsSpent is monotonically non-decreasing and
// never exceeds the workflow's CreditBudget.
type Membership struct {
	Workflow    address.Address    `cbor:"1,keyasint"`
	Participant identity.PublicKey `cbor:"2,keyasint"`

	// Joined records an explicit join (eager creation at workflow
	// setup also sets it). Kept for audit; the allowlist, not this
	// flag, gates actions.
	Joined bool `cbor:"3,keyasint"`

	NotesSubmitted uint8 `cbor:"4,keyasint"`
	CreditsSpent   uint8 `cbor:"5,keyasint"`

	// Score counts completed action items owned by this
	// participant. Incremented exactly once per item, by the
	// verification vote that reaches the approval threshold.
	Score uint32 `cbor:"6,keyasint"`
}

// Note is one retrospective note. Append-only: created during
// WriteNotes at the next sequential ID, with only GroupID mutable
// afterward (during GroupDuplicates).
type Note struct {
	Workflow   address.Address    `cbor:"1,keyasint"`
	ID         uint64             `cbor:"2,keyasint"`
	Author     identity.PublicKey `cbor:"3,keyasint"`
	CategoryID uint8              `cbor:"4,keyasint"`
	Content    string             `cbor:"5,keyasint"`

	// GroupID is the containing group, or nil when ungrouped. Set
	// at most once until explicitly cleared: moving a note between
	// groups requires an unassign in between.
	GroupID *uint64 `cbor:"6,keyasint,omitempty"`

	// CreatedAt is a Unix timestamp (seconds).
	CreatedAt int64 `cbor:"7,keyasint"`
}

// Group is a cluster of duplicate notes. VoteTally equals the sum of
// CreditsSpent across all vote records referencing this group, at
// every observation point.
type Group struct {
	Workflow  address.Address    `cbor:"1,keyasint"`
	ID        uint64             `cbor:"2,keyasint"`
	Title     string             `cbor:"3,keyasint"`
	CreatedBy identity.PublicKey `cbor:"4,keyasint"`
	VoteTally uint64             `cbor:"5,keyasint"`
}

// VoteRecord accumulates one participant's credit spend on one group.
// Created lazily on the first vote; CreditsSpent strictly increases
// with each successful cast (votes cannot be retracted).
type VoteRecord struct {
	Workflow     address.Address    `cbor:"1,keyasint"`
	Participant  identity.PublicKey `cbor:"2,keyasint"`
	GroupID      uint64             `cbor:"3,keyasint"`
	CreditsSpent uint8              `cbor:"4,keyasint"`
}

// ActionItemStatus is the two-state action item lifecycle.
type ActionItemStatus uint8

const (
	// ActionItemPending accepts verification votes.
	ActionItemPending ActionItemStatus = 0

	// ActionItemCompleted is terminal: reached exactly once, by the
	// vote that pushes approvals to the threshold.
	ActionItemCompleted ActionItemStatus = 1
)

// String returns the status name for logs and errors.
func (s ActionItemStatus) String() string {
	switch s {
	case ActionItemPending:
		return "pending"
	case ActionItemCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// ActionItem is a post-closure follow-up with threshold-based
// multi-verifier consensus: the item completes when approving
// verification votes reach Threshold, crediting the owner's score.
type ActionItem struct {
	Workflow    address.Address    `cbor:"1,keyasint"`
	ID          uint64             `cbor:"2,keyasint"`
	Description string             `cbor:"3,keyasint"`
	Owner       identity.PublicKey `cbor:"4,keyasint"`

	// Verifiers are the identities entitled to vote. The owner is
	// excluded (self-verification is forbidden) and every verifier
	// is a workflow participant.
	Verifiers []identity.PublicKey `cbor:"5,keyasint"`

	// Threshold is the approval count that completes the item,
	// 1 ≤ Threshold ≤ len(Verifiers).
	Threshold uint8 `cbor:"6,keyasint"`

	// Approvals counts approving votes so far.
	Approvals uint8 `cbor:"7,keyasint"`

	Status ActionItemStatus `cbor:"8,keyasint"`

	// CreatedAt is a Unix timestamp (seconds).
	CreatedAt int64 `cbor:"9,keyasint"`
}

// VerificationVote is one verifier's immutable vote on an action
// item. At most one exists per (item, verifier); duplicates are
// rejected by the occupied record address.
type VerificationVote struct {
	ActionItem address.Address    `cbor:"1,keyasint"`
	Verifier   identity.PublicKey `cbor:"2,keyasint"`
	Approved   bool               `cbor:"3,keyasint"`

	// VotedAt is a Unix timestamp (seconds).
	VotedAt int64 `cbor:"4,keyasint"`
}
