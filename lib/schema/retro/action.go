// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

// Socket action names for the retroflow service. Registered by
// cmd/retroflow-service and used by clients to address operations.

// Registry and workflow lifecycle.
const (
	ActionInitRegistry   = "retro/init-registry"
	ActionCreateWorkflow = "retro/create-workflow"
	ActionAdvanceStage   = "retro/advance-stage"
	ActionCloseWorkflow  = "retro/close-workflow"
)

// Allowlist and membership.
const (
	ActionAddAllowlistEntry    = "retro/allowlist-add"
	ActionRemoveAllowlistEntry = "retro/allowlist-remove"
	ActionJoinWorkflow         = "retro/join"
)

// Notes, groups, and voting.
const (
	ActionCreateNote        = "retro/create-note"
	ActionCreateGroup       = "retro/create-group"
	ActionSetGroupTitle     = "retro/set-group-title"
	ActionAssignNoteToGroup = "retro/assign-note"
	ActionUnassignNote      = "retro/unassign-note"
	ActionCastVote          = "retro/cast-vote"
)

// Action item verification.
const (
	ActionCreateActionItem     = "retro/create-action-item"
	ActionCastVerificationVote = "retro/cast-verification-vote"
)

// Delegation tokens.
const (
	ActionCreateDelegationToken = "retro/create-delegation-token"
	ActionRevokeDelegationToken = "retro/revoke-delegation-token"
)

// Queries.
const (
	ActionShowWorkflow   = "retro/show-workflow"
	ActionShowMembership = "retro/show-membership"
	ActionShowNote       = "retro/show-note"
	ActionShowGroup      = "retro/show-group"
	ActionShowActionItem = "retro/show-action-item"
)
