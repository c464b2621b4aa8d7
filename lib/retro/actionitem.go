// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// CreateActionItem records a post-closure follow-up with a verifier
// set and approval threshold. Facilitator-only; requires a closed
// workflow in the Discuss stage. The owner and every verifier must be
// allowlisted participants, the verifier set must be duplicate-free,
// and the owner cannot verify its own item.
func (e *Engine) CreateActionItem(ctx context.Context, auth authority.Authority, workflowAddr address.Address, description string, owner identity.PublicKey, verifiers []identity.PublicKey, threshold uint8) (uint64, error) {
	if description == "" {
		return 0, ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > retro.MaxActionItemDescriptionChars {
		return 0, fmt.Errorf("%w: %d characters, limit %d",
			ErrDescriptionTooLong, utf8.RuneCountInString(description), retro.MaxActionItemDescriptionChars)
	}
	if len(verifiers) == 0 {
		return 0, ErrNoVerifiers
	}
	if len(verifiers) > retro.MaxVerifiers {
		return 0, fmt.Errorf("%w: %d verifiers, limit %d", ErrTooManyVerifiers, len(verifiers), retro.MaxVerifiers)
	}
	if threshold == 0 || int(threshold) > len(verifiers) {
		return 0, fmt.Errorf("%w: threshold %d, verifiers %d", ErrInvalidThreshold, threshold, len(verifiers))
	}
	seen := make(map[identity.PublicKey]bool, len(verifiers))
	for _, v := range verifiers {
		if v == owner {
			return 0, ErrOwnerIsVerifier
		}
		if seen[v] {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateVerifier, v)
		}
		seen[v] = true
	}

	var itemID uint64
	err := e.records.Update(ctx, func(tx *store.Tx) error {
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
		if !workflow.Closed {
			return fmt.Errorf("%w: action items are created after closure", ErrWorkflowNotClosed)
		}
		if workflow.Stage != retro.StageDiscuss {
			return fmt.Errorf("%w: action items require %s", ErrInvalidStage, retro.StageDiscuss)
		}
		if err := requireAllowlisted(tx, workflowAddr, owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
		for _, v := range verifiers {
			if err := requireAllowlisted(tx, workflowAddr, v); err != nil {
				return fmt.Errorf("verifier %s: %w", v, err)
			}
		}

		// Materialize the owner's membership now so the completing
		// verification vote always finds a ledger to credit.
		membership, _, err := getOrCreateMembership(tx, workflowAddr, workflow, owner)
		if err != nil {
			return err
		}
		if err := e.save(tx, retro.MembershipAddress(workflowAddr, owner), membership); err != nil {
			return err
		}

		itemID = workflow.ActionItemCount
		count, ok := addUint64(workflow.ActionItemCount, 1)
		if !ok {
			return fmt.Errorf("%w: action item count", ErrCounterOverflow)
		}
		workflow.ActionItemCount = count

		item := retro.ActionItem{
			Workflow:    workflowAddr,
			ID:          itemID,
			Description: description,
			Owner:       owner,
			Verifiers:   verifiers,
			Threshold:   threshold,
			Status:      retro.ActionItemPending,
			CreatedAt:   e.clock.Now().Unix(),
		}
		if err := e.insert(tx, retro.ActionItemAddress(workflowAddr, itemID), &item); err != nil {
			return err
		}
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("action item created",
			"workflow", workflowAddr,
			"item", itemID,
			"owner", owner,
			"verifiers", len(verifiers),
			"threshold", threshold,
		)
		return nil
	})
	return itemID, err
}

// CastVerificationVote records one verifier's vote on a pending
// action item. Each verifier votes at most once, approve or reject,
// and the vote is immutable. The vote that pushes approvals to the
// threshold completes the item and credits the owner's score; later
// votes are rejected, so completion happens exactly once.
func (e *Engine) CastVerificationVote(ctx context.Context, auth authority.Authority, workflowAddr address.Address, itemID uint64, approve bool) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		verifier, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if !workflow.Closed {
			return fmt.Errorf("%w: verification runs after closure", ErrWorkflowNotClosed)
		}

		itemAddr := retro.ActionItemAddress(workflowAddr, itemID)
		item, err := load[retro.ActionItem](tx, itemAddr, ErrActionItemNotFound)
		if err != nil {
			return err
		}
		if item.Status != retro.ActionItemPending {
			return ErrActionItemCompleted
		}
		designated := false
		for _, v := range item.Verifiers {
			if v == verifier {
				designated = true
				break
			}
		}
		if !designated {
			return ErrNotVerifier
		}

		vote := retro.VerificationVote{
			ActionItem: itemAddr,
			Verifier:   verifier,
			Approved:   approve,
			VotedAt:    e.clock.Now().Unix(),
		}
		if err := e.insert(tx, retro.VerificationVoteAddress(itemAddr, verifier), &vote); err != nil {
			if errors.Is(err, store.ErrRecordExists) {
				return ErrDuplicateVote
			}
			return err
		}

		if approve {
			approvals, ok := addUint8(item.Approvals, 1)
			if !ok {
				return fmt.Errorf("%w: approvals", ErrCounterOverflow)
			}
			item.Approvals = approvals
			if approvals >= item.Threshold {
				item.Status = retro.ActionItemCompleted

				membershipAddr := retro.MembershipAddress(workflowAddr, item.Owner)
				membership, err := load[retro.Membership](tx, membershipAddr, ErrMembershipNotFound)
				if err != nil {
					return err
				}
				membership.Score++
				if err := e.save(tx, membershipAddr, membership); err != nil {
					return err
				}
			}
			if err := e.save(tx, itemAddr, item); err != nil {
				return err
			}
		}

		e.logger.Info("verification vote cast",
			"workflow", workflowAddr,
			"item", itemID,
			"verifier", verifier,
			"approved", approve,
			"status", item.Status,
		)
		return nil
	})
}
