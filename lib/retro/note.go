// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// CreateNote appends a note to the workflow during WriteNotes. The
// author is the resolved principal; the note takes the workflow's
// next sequential ID. Membership is created on demand, and the
// author's per-participant note cap is enforced against it.
func (e *Engine) CreateNote(ctx context.Context, auth authority.Authority, workflowAddr address.Address, categoryID uint8, content string) (uint64, error) {
	var noteID uint64
	err := e.records.Update(ctx, func(tx *store.Tx) error {
		author, err := e.gate.Resolve(tx, auth)
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
		if workflow.Stage != retro.StageWriteNotes {
			return fmt.Errorf("%w: notes require %s", ErrInvalidStage, retro.StageWriteNotes)
		}
		if err := requireAllowlisted(tx, workflowAddr, author); err != nil {
			return err
		}
		if int(categoryID) >= len(workflow.Categories) {
			return fmt.Errorf("%w: category %d of %d", ErrInvalidCategory, categoryID, len(workflow.Categories))
		}
		if content == "" {
			return ErrEmptyNote
		}
		if utf8.RuneCountInString(content) > retro.MaxNoteChars {
			return fmt.Errorf("%w: %d characters, limit %d", ErrNoteTooLong, utf8.RuneCountInString(content), retro.MaxNoteChars)
		}

		membership, _, err := getOrCreateMembership(tx, workflowAddr, workflow, author)
		if err != nil {
			return err
		}
		if membership.NotesSubmitted >= workflow.NoteCap {
			return fmt.Errorf("%w: %d of %d", ErrNoteCapReached, membership.NotesSubmitted, workflow.NoteCap)
		}

		submitted, ok := addUint8(membership.NotesSubmitted, 1)
		if !ok {
			return fmt.Errorf("%w: notes submitted", ErrCounterOverflow)
		}
		membership.NotesSubmitted = submitted

		noteID = workflow.NoteCount
		count, ok := addUint64(workflow.NoteCount, 1)
		if !ok {
			return fmt.Errorf("%w: note count", ErrCounterOverflow)
		}
		workflow.NoteCount = count

		note := retro.Note{
			Workflow:   workflowAddr,
			ID:         noteID,
			Author:     author,
			CategoryID: categoryID,
			Content:    content,
			CreatedAt:  e.clock.Now().Unix(),
		}
		if err := e.insert(tx, retro.NoteAddress(workflowAddr, noteID), &note); err != nil {
			return err
		}
		if err := e.save(tx, retro.MembershipAddress(workflowAddr, author), membership); err != nil {
			return err
		}
		if err := e.save(tx, workflowAddr, workflow); err != nil {
			return err
		}

		e.logger.Info("note created",
			"workflow", workflowAddr,
			"note", noteID,
			"author", author,
			"category", categoryID,
		)
		return nil
	})
	return noteID, err
}
