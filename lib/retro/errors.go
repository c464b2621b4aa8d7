// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import "errors"

// Authorization errors.
var (
	ErrNotFacilitator = errors.New("retro: only the facilitator can perform this action")
	ErrNotPrincipal   = errors.New("retro: only the owning principal can perform this action")
	ErrNotVerifier    = errors.New("retro: caller is not a designated verifier for this item")
)

// Stage and closure errors.
var (
	ErrWorkflowClosed         = errors.New("retro: workflow is closed and cannot be modified")
	ErrWorkflowNotClosed      = errors.New("retro: workflow must be closed first")
	ErrInvalidStage           = errors.New("retro: operation not valid in the current stage")
	ErrInvalidStageTransition = errors.New("retro: stage can only advance by exactly one step")
)

// Validation errors.
var (
	ErrNoCategories        = errors.New("retro: at least one category is required")
	ErrTooManyCategories   = errors.New("retro: too many categories")
	ErrCategoryNameTooLong = errors.New("retro: category name exceeds maximum length")
	ErrInvalidCategory     = errors.New("retro: category id does not reference a category")
	ErrEmptyNote           = errors.New("retro: note content is required")
	ErrNoteTooLong         = errors.New("retro: note content exceeds maximum length")
	ErrGroupTitleTooLong   = errors.New("retro: group title exceeds maximum length")
	ErrNoteAlreadyGrouped  = errors.New("retro: note is already assigned to a group")
	ErrNoteNotGrouped      = errors.New("retro: note is not assigned to any group")
	ErrDescriptionTooLong  = errors.New("retro: action item description exceeds maximum length")
	ErrEmptyDescription    = errors.New("retro: action item description is required")
	ErrNoVerifiers         = errors.New("retro: at least one verifier is required")
	ErrTooManyVerifiers    = errors.New("retro: too many verifiers")
	ErrDuplicateVerifier   = errors.New("retro: duplicate identity in verifier set")
	ErrInvalidThreshold    = errors.New("retro: threshold must be between 1 and the verifier count")
	ErrOwnerIsVerifier     = errors.New("retro: the owner cannot verify its own action item")
)

// Membership and join errors.
var (
	ErrNotAllowlisted     = errors.New("retro: participant is not on the allowlist")
	ErrAlreadyAllowlisted = errors.New("retro: participant is already on the allowlist")
	ErrAlreadyJoined      = errors.New("retro: participant has already joined")
	ErrAllowlistDisabled  = errors.New("retro: allowlist is not enabled for this workflow")
	ErrJoinDisabled       = errors.New("retro: no join path is enabled for this caller")
	ErrNoParticipants     = errors.New("retro: workflow has no way to admit participants")
)

// Capacity and credit errors.
var (
	ErrParticipantCapReached = errors.New("retro: maximum participant count reached")
	ErrNoteCapReached        = errors.New("retro: per-participant note limit reached")
	ErrAllowlistTooLarge     = errors.New("retro: initial allowlist exceeds the participant cap")
	ErrZeroCreditDelta       = errors.New("retro: credit delta must be strictly positive")
	ErrInsufficientCredits   = errors.New("retro: vote exceeds the remaining credit budget")
	ErrCounterOverflow       = errors.New("retro: counter overflow")
)

// State-consistency errors.
var (
	ErrRegistryExists      = errors.New("retro: registry already initialized for this principal")
	ErrRegistryNotFound    = errors.New("retro: registry not initialized for this principal")
	ErrWorkflowNotFound    = errors.New("retro: workflow not found")
	ErrMembershipNotFound  = errors.New("retro: participant has no membership record")
	ErrNoteNotFound        = errors.New("retro: note not found")
	ErrGroupNotFound       = errors.New("retro: group not found")
	ErrActionItemNotFound  = errors.New("retro: action item not found")
	ErrActionItemCompleted = errors.New("retro: action item is already completed")
	ErrDuplicateVote       = errors.New("retro: verifier has already voted on this item")
)
