// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"fmt"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// CastVote spends delta credits from the caller's budget on a group.
// Three records move together in one transaction: the per-(voter,
// group) vote record, the voter's membership ledger, and the group
// tally. Votes accumulate and cannot be retracted, so every counter
// only increases, and the group tallies always sum to the credits
// spent across memberships.
func (e *Engine) CastVote(ctx context.Context, auth authority.Authority, workflowAddr address.Address, groupID uint64, delta uint8) error {
	if delta == 0 {
		return ErrZeroCreditDelta
	}
	return e.records.Update(ctx, func(tx *store.Tx) error {
		voter, err := e.gate.Resolve(tx, auth)
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
		if workflow.Stage != retro.StageVote {
			return fmt.Errorf("%w: voting requires %s", ErrInvalidStage, retro.StageVote)
		}
		if err := requireAllowlisted(tx, workflowAddr, voter); err != nil {
			return err
		}

		groupAddr := retro.GroupAddress(workflowAddr, groupID)
		group, err := load[retro.Group](tx, groupAddr, ErrGroupNotFound)
		if err != nil {
			return err
		}

		membership, _, err := getOrCreateMembership(tx, workflowAddr, workflow, voter)
		if err != nil {
			return err
		}

		// Budget check before any mutation: the spend must fit in
		// both the uint8 counter and the workflow's credit budget.
		spent, ok := addUint8(membership.CreditsSpent, delta)
		if !ok {
			return fmt.Errorf("%w: credits spent", ErrCounterOverflow)
		}
		if spent > workflow.CreditBudget {
			return fmt.Errorf("%w: %d spent + %d requested > budget %d",
				ErrInsufficientCredits, membership.CreditsSpent, delta, workflow.CreditBudget)
		}

		voteAddr := retro.VoteAddress(workflowAddr, voter, groupID)
		vote, err := load[retro.VoteRecord](tx, voteAddr, nil)
		if err != nil {
			return err
		}
		if vote == nil {
			vote = &retro.VoteRecord{
				Workflow:    workflowAddr,
				Participant: voter,
				GroupID:     groupID,
			}
		}
		voteSpent, ok := addUint8(vote.CreditsSpent, delta)
		if !ok {
			return fmt.Errorf("%w: vote record credits", ErrCounterOverflow)
		}
		tally, ok := addUint64(group.VoteTally, uint64(delta))
		if !ok {
			return fmt.Errorf("%w: group tally", ErrCounterOverflow)
		}

		membership.CreditsSpent = spent
		vote.CreditsSpent = voteSpent
		group.VoteTally = tally

		if err := e.save(tx, voteAddr, vote); err != nil {
			return err
		}
		if err := e.save(tx, retro.MembershipAddress(workflowAddr, voter), membership); err != nil {
			return err
		}
		if err := e.save(tx, groupAddr, group); err != nil {
			return err
		}
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("vote cast",
			"workflow", workflowAddr,
			"group", groupID,
			"voter", voter,
			"delta", delta,
			"spent", spent,
		)
		return nil
	})
}
