// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// requireGroupingStage checks the shared preconditions of every
// grouping call: workflow open, GroupDuplicates stage, caller
// allowlisted.
func requireGroupingStage(tx *store.Tx, workflowAddr address.Address, workflow *retro.Workflow, caller identity.PublicKey) error {
	if workflow.Closed {
		return ErrWorkflowClosed
	}
	if workflow.Stage != retro.StageGroupDuplicates {
		return fmt.Errorf("%w: grouping requires %s", ErrInvalidStage, retro.StageGroupDuplicates)
	}
	return requireAllowlisted(tx, workflowAddr, caller)
}

// CreateGroup creates an empty duplicate group with the workflow's
// next sequential group ID. Any allowlisted participant may create
// groups during GroupDuplicates.
func (e *Engine) CreateGroup(ctx context.Context, auth authority.Authority, workflowAddr address.Address, title string) (uint64, error) {
	if utf8.RuneCountInString(title) > retro.MaxGroupTitleChars {
		return 0, fmt.Errorf("%w: %d characters, limit %d", ErrGroupTitleTooLong, utf8.RuneCountInString(title), retro.MaxGroupTitleChars)
	}
	var groupID uint64
	err := e.records.Update(ctx, func(tx *store.Tx) error {
		caller, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if err := requireGroupingStage(tx, workflowAddr, workflow, caller); err != nil {
			return err
		}

		groupID = workflow.GroupCount
		count, ok := addUint64(workflow.GroupCount, 1)
		if !ok {
			return fmt.Errorf("%w: group count", ErrCounterOverflow)
		}
		workflow.GroupCount = count

		group := retro.Group{
			Workflow:  workflowAddr,
			ID:        groupID,
			Title:     title,
			CreatedBy: caller,
		}
		if err := e.insert(tx, retro.GroupAddress(workflowAddr, groupID), &group); err != nil {
			return err
		}
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("group created",
			"workflow", workflowAddr,
			"group", groupID,
			"creator", caller,
		)
		return nil
	})
	return groupID, err
}

// SetGroupTitle replaces a group's title.
func (e *Engine) SetGroupTitle(ctx context.Context, auth authority.Authority, workflowAddr address.Address, groupID uint64, title string) error {
	if utf8.RuneCountInString(title) > retro.MaxGroupTitleChars {
		return fmt.Errorf("%w: %d characters, limit %d", ErrGroupTitleTooLong, utf8.RuneCountInString(title), retro.MaxGroupTitleChars)
	}
	return e.records.Update(ctx, func(tx *store.Tx) error {
		caller, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if err := requireGroupingStage(tx, workflowAddr, workflow, caller); err != nil {
			return err
		}

		groupAddr := retro.GroupAddress(workflowAddr, groupID)
		group, err := load[retro.Group](tx, groupAddr, ErrGroupNotFound)
		if err != nil {
			return err
		}
		group.Title = title
		return e.save(tx, groupAddr, group)
	})
}

// AssignNoteToGroup places an ungrouped note into a group. A grouped
// note must be unassigned first; assignments never overwrite each
// other silently.
func (e *Engine) AssignNoteToGroup(ctx context.Context, auth authority.Authority, workflowAddr address.Address, noteID, groupID uint64) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		caller, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if err := requireGroupingStage(tx, workflowAddr, workflow, caller); err != nil {
			return err
		}

		noteAddr := retro.NoteAddress(workflowAddr, noteID)
		note, err := load[retro.Note](tx, noteAddr, ErrNoteNotFound)
		if err != nil {
			return err
		}
		if note.GroupID != nil {
			return fmt.Errorf("%w: note %d is in group %d", ErrNoteAlreadyGrouped, noteID, *note.GroupID)
		}
		// The target group must exist; the assignment holds a
		// reference to it.
		if _, err := load[retro.Group](tx, retro.GroupAddress(workflowAddr, groupID), ErrGroupNotFound); err != nil {
			return err
		}

		note.GroupID = &groupID
		if err := e.save(tx, noteAddr, note); err != nil {
			return err
		}

		e.logger.Info("note assigned",
			"workflow", workflowAddr,
			"note", noteID,
			"group", groupID,
		)
		return nil
	})
}

// UnassignNote clears a note's group assignment, returning it to the
// ungrouped pool.
func (e *Engine) UnassignNote(ctx context.Context, auth authority.Authority, workflowAddr address.Address, noteID uint64) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		caller, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		workflow, err := load[retro.Workflow](tx, workflowAddr, ErrWorkflowNotFound)
		if err != nil {
			return err
		}
		if err := requireGroupingStage(tx, workflowAddr, workflow, caller); err != nil {
			return err
		}

		noteAddr := retro.NoteAddress(workflowAddr, noteID)
		note, err := load[retro.Note](tx, noteAddr, ErrNoteNotFound)
		if err != nil {
			return err
		}
		if note.GroupID == nil {
			return fmt.Errorf("%w: note %d", ErrNoteNotGrouped, noteID)
		}

		note.GroupID = nil
		if err := e.save(tx, noteAddr, note); err != nil {
			return err
		}

		e.logger.Info("note unassigned",
			"workflow", workflowAddr,
			"note", noteID,
		)
		return nil
	})
}
