// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/retro"
	retroschema "github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/session"
	"github.com/retroflow-foundation/retroflow/lib/socket"
)

// retroService holds the wired components behind the socket API.
type retroService struct {
	engine *retro.Engine
	tokens *session.Store
	clock  clock.Clock
	self   identity.PublicKey
	logger *slog.Logger

	startedAt time.Time
}

func newService(engine *retro.Engine, tokens *session.Store, clk clock.Clock, self identity.PublicKey, logger *slog.Logger) *retroService {
	return &retroService{
		engine:    engine,
		tokens:    tokens,
		clock:     clk,
		self:      self,
		logger:    logger,
		startedAt: clk.Now(),
	}
}

// registerActions registers every socket API action on the server.
// Every request arrives through a signed envelope; the socket server
// has verified the caller's signature by the time a handler runs, so
// handlers only deal with domain authorization.
func (s *retroService) registerActions(server *socket.Server) {
	// Liveness check. Reveals nothing beyond uptime and identity.
	server.Handle("status", s.handleStatus)

	// Registry and workflow lifecycle.
	server.Handle(retroschema.ActionInitRegistry, s.handleInitRegistry)
	server.Handle(retroschema.ActionCreateWorkflow, s.handleCreateWorkflow)
	server.Handle(retroschema.ActionAdvanceStage, s.handleAdvanceStage)
	server.Handle(retroschema.ActionCloseWorkflow, s.handleCloseWorkflow)

	// Allowlist and membership.
	server.Handle(retroschema.ActionAddAllowlistEntry, s.handleAddAllowlistEntry)
	server.Handle(retroschema.ActionRemoveAllowlistEntry, s.handleRemoveAllowlistEntry)
	server.Handle(retroschema.ActionJoinWorkflow, s.handleJoinWorkflow)

	// Notes, groups, and voting.
	server.Handle(retroschema.ActionCreateNote, s.handleCreateNote)
	server.Handle(retroschema.ActionCreateGroup, s.handleCreateGroup)
	server.Handle(retroschema.ActionSetGroupTitle, s.handleSetGroupTitle)
	server.Handle(retroschema.ActionAssignNoteToGroup, s.handleAssignNote)
	server.Handle(retroschema.ActionUnassignNote, s.handleUnassignNote)
	server.Handle(retroschema.ActionCastVote, s.handleCastVote)

	// Action item verification.
	server.Handle(retroschema.ActionCreateActionItem, s.handleCreateActionItem)
	server.Handle(retroschema.ActionCastVerificationVote, s.handleCastVerificationVote)

	// Delegation tokens.
	server.Handle(retroschema.ActionCreateDelegationToken, s.handleCreateDelegationToken)
	server.Handle(retroschema.ActionRevokeDelegationToken, s.handleRevokeDelegationToken)

	// Queries.
	server.Handle(retroschema.ActionShowWorkflow, s.handleShowWorkflow)
	server.Handle(retroschema.ActionShowMembership, s.handleShowMembership)
	server.Handle(retroschema.ActionShowNote, s.handleShowNote)
	server.Handle(retroschema.ActionShowGroup, s.handleShowGroup)
	server.Handle(retroschema.ActionShowActionItem, s.handleShowActionItem)
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	// UptimeSeconds is how long the service has been running.
	UptimeSeconds float64 `cbor:"uptime_seconds"`

	// Identity is the service's record-owning public key. Clients
	// creating delegation tokens scope them to this identity.
	Identity identity.PublicKey `cbor:"identity"`
}

func (s *retroService) handleStatus(ctx context.Context, auth authority.Authority, params codec.RawMessage) (any, error) {
	return statusResponse{
		UptimeSeconds: s.clock.Now().Sub(s.startedAt).Seconds(),
		Identity:      s.self,
	}, nil
}
