// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/retro"
	retroschema "github.com/retroflow-foundation/retroflow/lib/schema/retro"
)

// decodeParams unmarshals the request's parameter payload into target.
func decodeParams(params codec.RawMessage, target any) error {
	if len(params) == 0 {
		return fmt.Errorf("missing request parameters")
	}
	if err := codec.Unmarshal(params, target); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

func (s *retroService) handleInitRegistry(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	return nil, s.engine.InitRegistry(ctx, auth)
}

type createWorkflowParams struct {
	Categories       []string             `cbor:"categories"`
	Allowlist        []identity.PublicKey `cbor:"allowlist"`
	CreditBudget     uint8                `cbor:"credit_budget"`
	NoteCap          uint8                `cbor:"note_cap"`
	AllowlistEnabled bool                 `cbor:"allowlist_enabled"`
	OpenJoin         bool                 `cbor:"open_join"`
}

type createWorkflowResponse struct {
	Workflow address.Address `cbor:"workflow"`
}

func (s *retroService) handleCreateWorkflow(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p createWorkflowParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := s.engine.CreateWorkflow(ctx, auth, retro.WorkflowConfig{
		Categories:       p.Categories,
		Allowlist:        p.Allowlist,
		CreditBudget:     p.CreditBudget,
		NoteCap:          p.NoteCap,
		AllowlistEnabled: p.AllowlistEnabled,
		OpenJoin:         p.OpenJoin,
	})
	if err != nil {
		return nil, err
	}
	return createWorkflowResponse{Workflow: addr}, nil
}

type advanceStageParams struct {
	Workflow address.Address `cbor:"workflow"`
	Stage    uint8           `cbor:"stage"`
}

func (s *retroService) handleAdvanceStage(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p advanceStageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	stage := retroschema.Stage(p.Stage)
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage %d", p.Stage)
	}
	return nil, s.engine.AdvanceStage(ctx, auth, p.Workflow, stage)
}

type workflowParams struct {
	Workflow address.Address `cbor:"workflow"`
}

func (s *retroService) handleCloseWorkflow(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p workflowParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.CloseWorkflow(ctx, auth, p.Workflow)
}

type allowlistParams struct {
	Workflow    address.Address    `cbor:"workflow"`
	Participant identity.PublicKey `cbor:"participant"`
}

func (s *retroService) handleAddAllowlistEntry(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p allowlistParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.AddAllowlistEntry(ctx, auth, p.Workflow, p.Participant)
}

func (s *retroService) handleRemoveAllowlistEntry(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p allowlistParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.RemoveAllowlistEntry(ctx, auth, p.Workflow, p.Participant)
}

func (s *retroService) handleJoinWorkflow(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p workflowParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.JoinWorkflow(ctx, auth, p.Workflow)
}

type createNoteParams struct {
	Workflow   address.Address `cbor:"workflow"`
	CategoryID uint8           `cbor:"category_id"`
	Content    string          `cbor:"content"`
}

type createNoteResponse struct {
	NoteID uint64 `cbor:"note_id"`
}

func (s *retroService) handleCreateNote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p createNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	noteID, err := s.engine.CreateNote(ctx, auth, p.Workflow, p.CategoryID, p.Content)
	if err != nil {
		return nil, err
	}
	return createNoteResponse{NoteID: noteID}, nil
}

type createGroupParams struct {
	Workflow address.Address `cbor:"workflow"`
	Title    string          `cbor:"title"`
}

type createGroupResponse struct {
	GroupID uint64 `cbor:"group_id"`
}

func (s *retroService) handleCreateGroup(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p createGroupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	groupID, err := s.engine.CreateGroup(ctx, auth, p.Workflow, p.Title)
	if err != nil {
		return nil, err
	}
	return createGroupResponse{GroupID: groupID}, nil
}

type setGroupTitleParams struct {
	Workflow address.Address `cbor:"workflow"`
	GroupID  uint64          `cbor:"group_id"`
	Title    string          `cbor:"title"`
}

func (s *retroService) handleSetGroupTitle(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p setGroupTitleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.SetGroupTitle(ctx, auth, p.Workflow, p.GroupID, p.Title)
}

type assignNoteParams struct {
	Workflow address.Address `cbor:"workflow"`
	NoteID   uint64          `cbor:"note_id"`
	GroupID  uint64          `cbor:"group_id"`
}

func (s *retroService) handleAssignNote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p assignNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.AssignNoteToGroup(ctx, auth, p.Workflow, p.NoteID, p.GroupID)
}

type unassignNoteParams struct {
	Workflow address.Address `cbor:"workflow"`
	NoteID   uint64          `cbor:"note_id"`
}

func (s *retroService) handleUnassignNote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p unassignNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.UnassignNote(ctx, auth, p.Workflow, p.NoteID)
}

type castVoteParams struct {
	Workflow address.Address `cbor:"workflow"`
	GroupID  uint64          `cbor:"group_id"`
	Credits  uint8           `cbor:"credits"`
}

func (s *retroService) handleCastVote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p castVoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.CastVote(ctx, auth, p.Workflow, p.GroupID, p.Credits)
}

type createActionItemParams struct {
	Workflow    address.Address      `cbor:"workflow"`
	Description string               `cbor:"description"`
	Owner       identity.PublicKey   `cbor:"owner"`
	Verifiers   []identity.PublicKey `cbor:"verifiers"`
	Threshold   uint8                `cbor:"threshold"`
}

type createActionItemResponse struct {
	ItemID uint64 `cbor:"item_id"`
}

func (s *retroService) handleCreateActionItem(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p createActionItemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	itemID, err := s.engine.CreateActionItem(ctx, auth, p.Workflow, p.Description, p.Owner, p.Verifiers, p.Threshold)
	if err != nil {
		return nil, err
	}
	return createActionItemResponse{ItemID: itemID}, nil
}

type castVerificationVoteParams struct {
	Workflow address.Address `cbor:"workflow"`
	ItemID   uint64          `cbor:"item_id"`
	Approve  bool            `cbor:"approve"`
}

func (s *retroService) handleCastVerificationVote(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	var p castVerificationVoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.engine.CastVerificationVote(ctx, auth, p.Workflow, p.ItemID, p.Approve)
}

type createTokenParams struct {
	Delegate identity.PublicKey `cbor:"delegate"`

	// ValidUntil is an absolute Unix timestamp. Zero selects the
	// default validity window.
	ValidUntil int64 `cbor:"valid_until"`

	// TopUp is an audit-only funding amount recorded on the token.
	TopUp uint64 `cbor:"top_up"`
}

type createTokenResponse struct {
	Token address.Address `cbor:"token"`
}

// handleCreateDelegationToken mints a token letting the delegate act
// for the caller. The principal is the envelope's direct caller: a
// delegate cannot mint onward delegations. The delegate must co-sign
// the request, consenting to act for the principal.
func (s *retroService) handleCreateDelegationToken(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	if auth.IsDelegated() {
		return nil, fmt.Errorf("delegated callers cannot create delegation tokens")
	}
	var p createTokenParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if auth.CoSigner() != p.Delegate {
		return nil, fmt.Errorf("delegation token creation requires the delegate's co-signature")
	}
	tokenAddr, err := s.tokens.Create(ctx, auth.Caller(), p.Delegate, s.self, p.ValidUntil, p.TopUp)
	if err != nil {
		return nil, err
	}
	return createTokenResponse{Token: tokenAddr}, nil
}

type revokeTokenParams struct {
	Delegate identity.PublicKey `cbor:"delegate"`
}

// handleRevokeDelegationToken deletes the caller's token for the
// named delegate. Only the principal that minted a token can revoke
// it; the token store enforces this against the stored record.
func (s *retroService) handleRevokeDelegationToken(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	if auth.IsDelegated() {
		return nil, fmt.Errorf("delegated callers cannot revoke delegation tokens")
	}
	var p revokeTokenParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.tokens.Revoke(ctx, auth.Caller(), p.Delegate, s.self)
}
