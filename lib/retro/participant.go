// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// AddAllowlistEntry admits a participant to the workflow's allowlist.
// Facilitator-only; valid only during Setup while the allowlist is
// enabled. Membership is not created here — it appears when the
// participant joins, or lazily on first vote.
func (e *Engine) AddAllowlistEntry(ctx context.Context, auth authority.Authority, workflowAddr address.Address, participant identity.PublicKey) error {
	if participant.IsZero() {
		return fmt.Errorf("retro: participant identity is required")
	}
	return e.records.Update(ctx, func(tx *store.Tx) error {
		principal, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if workflow.Facilitator != principal {
			return ErrNotFacilitator
		}
		if workflow.Closed {
			return ErrWorkflowClosed
		}
		if workflow.Stage != retro.StageSetup {
			return fmt.Errorf("%w: allowlist changes require %s", ErrInvalidStage, retro.StageSetup)
		}
		if !workflow.AllowlistEnabled {
			return ErrAllowlistDisabled
		}

		entry := retro.AllowlistEntry{
			Workflow:    workflowAddr,
			Participant: participant,
			Allowed:     true,
		}
		if err := e.insert(tx, retro.AllowlistAddress(workflowAddr, participant), &entry); err != nil {
			if errors.Is(err, store.ErrRecordExists) {
				return ErrAlreadyAllowlisted
			}
			return err
		}

		e.logger.Info("allowlist entry added",
			"workflow", workflowAddr,
			"participant", participant,
		)
		return nil
	})
}

// RemoveAllowlistEntry removes a participant from the allowlist,
// reclaiming the entry's storage. Facilitator-only; Setup stage only.
// Any membership record the participant already has stays in place
// but becomes inert, since the allowlist gates every action.
func (e *Engine) RemoveAllowlistEntry(ctx context.Context, auth authority.Authority, workflowAddr address.Address, participant identity.PublicKey) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		principal, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if workflow.Facilitator != principal {
			return ErrNotFacilitator
		}
		if workflow.Closed {
			return ErrWorkflowClosed
		}
		if workflow.Stage != retro.StageSetup {
			return fmt.Errorf("%w: allowlist changes require %s", ErrInvalidStage, retro.StageSetup)
		}
		if !workflow.AllowlistEnabled {
			return ErrAllowlistDisabled
		}

		entryAddr := retro.AllowlistAddress(workflowAddr, participant)
		if _, found, err := tx.Get(entryAddr); err != nil {
			return err
		} else if !found {
			return ErrNotAllowlisted
		}
		if err := tx.Delete(entryAddr); err != nil {
			return err
		}

		e.logger.Info("allowlist entry removed",
			"workflow", workflowAddr,
			"participant", participant,
		)
		return nil
	})
}

// JoinWorkflow creates the caller's membership record. Two paths:
// allowlisted join (allowlist enabled and the caller holds an allowed
// entry) and open join (open join enabled; the caller is added to the
// allowlist as a side effect). Both paths may be enabled at once;
// each checks only its own flag.
func (e *Engine) JoinWorkflow(ctx context.Context, auth authority.Authority, workflowAddr address.Address) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		participant, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if workflow.Closed {
			return ErrWorkflowClosed
		}

		allowed := false
		if workflow.AllowlistEnabled {
			allowed, err = isAllowlisted(tx, workflowAddr, participant)
			if err != nil {
				return err
			}
		}
		switch {
		case allowed:
			// Allowlisted join.
		case workflow.OpenJoin:
			// Open join admits the caller to the allowlist so it
			// stays the authoritative participant set.
			entry := retro.AllowlistEntry{
				Workflow:    workflowAddr,
				Participant: participant,
				Allowed:     true,
			}
			if err := e.save(tx, retro.AllowlistAddress(workflowAddr, participant), &entry); err != nil {
				return err
			}
		case workflow.AllowlistEnabled:
			return ErrNotAllowlisted
		default:
			return ErrJoinDisabled
		}

		membership, created, err := getOrCreateMembership(tx, workflowAddr, workflow, participant)
		if err != nil {
			return err
		}
		if !created && membership.Joined {
			return ErrAlreadyJoined
		}
		membership.Joined = true

		if err := e.save(tx, retro.MembershipAddress(workflowAddr, participant), membership); err != nil {
			return err
		}
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("participant joined",
			"workflow", workflowAddr,
			"participant", participant,
		)
		return nil
	})
}
