// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import "fmt"

// Stage is one of the five ordered phases of a workflow. Each stage
// gates which operations are valid: notes are written during
// WriteNotes, grouping happens during GroupDuplicates, and so on.
//
// The numeric values are the wire encoding and never change. All
// transition logic goes through CanAdvanceTo's explicit edge table;
// nothing compares stages arithmetically.
type Stage uint8

const (
	// StageSetup is the initial stage: the facilitator adjusts the
	// allowlist before any notes exist.
	StageSetup Stage = 0

	// StageWriteNotes is the note-writing phase.
	StageWriteNotes Stage = 1

	// StageGroupDuplicates is the grouping phase: participants
	// create groups and move notes between them.
	StageGroupDuplicates Stage = 2

	// StageVote is the credit-limited voting phase.
	StageVote Stage = 3

	// StageDiscuss is the final phase. Closing the workflow is only
	// valid here, and action items are created after closure while
	// the workflow remains in this stage.
	StageDiscuss Stage = 4
)

// CanAdvanceTo reports whether next is the single legal forward step
// from s. The five legal edges are enumerated explicitly; skipping,
// regressing, and self-transitions are all rejected.
func (s Stage) CanAdvanceTo(next Stage) bool {
	switch s {
	case StageSetup:
		return next == StageWriteNotes
	case StageWriteNotes:
		return next == StageGroupDuplicates
	case StageGroupDuplicates:
		return next == StageVote
	case StageVote:
		return next == StageDiscuss
	default:
		// StageDiscuss is terminal; closure is a separate flag,
		// not a stage.
		return false
	}
}

// Valid reports whether s is one of the five defined stages. Decoded
// records are checked before their stage is trusted.
func (s Stage) Valid() bool {
	return s <= StageDiscuss
}

// String returns the stage name for logs and errors.
func (s Stage) String() string {
	switch s {
	case StageSetup:
		return "setup"
	case StageWriteNotes:
		return "write-notes"
	case StageGroupDuplicates:
		return "group-duplicates"
	case StageVote:
		return "vote"
	case StageDiscuss:
		return "discuss"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}
