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

// AdvanceStage moves the workflow to newStage. Facilitator-only;
// the workflow must be open and newStage must be the single legal
// forward step from the current stage.
func (e *Engine) AdvanceStage(ctx context.Context, auth authority.Authority, workflowAddr address.Address, newStage retro.Stage) error {
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
		if !workflow.Stage.CanAdvanceTo(newStage) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStageTransition, workflow.Stage, newStage)
		}

		workflow.Stage = newStage
		workflow.StageChangedAt = e.clock.Now().Unix()
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("stage advanced",
			"workflow", workflowAddr,
			"stage", newStage,
		)
		return nil
	})
}

// CloseWorkflow sets the one-way closure flag. Facilitator-only;
// valid only in the Discuss stage. Closure freezes notes, groups,
// and votes permanently and unlocks the action-item subsystem.
func (e *Engine) CloseWorkflow(ctx context.Context, auth authority.Authority, workflowAddr address.Address) error {
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
		if workflow.Stage != retro.StageDiscuss {
			return fmt.Errorf("%w: close requires %s, currently %s", ErrInvalidStage, retro.StageDiscuss, workflow.Stage)
		}

		workflow.Closed = true
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("workflow closed", "workflow", workflowAddr)
		return nil
	})
}
