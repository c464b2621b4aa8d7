// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

// Size and count limits. These are design limits, not tuning knobs:
// the ledger optimizes for auditability over throughput and assumes
// tens of participants, not thousands.
const (
	// MaxNoteChars bounds note content length in characters.
	MaxNoteChars = 280

	// MaxGroupTitleChars bounds group title length in characters.
	MaxGroupTitleChars = 80

	// MaxParticipants bounds the participant count per workflow.
	MaxParticipants = 30

	// DefaultNoteCap is the per-participant note limit when workflow
	// creation does not override it.
	DefaultNoteCap = 10

	// MaxCategories bounds the category list per workflow.
	MaxCategories = 5

	// MaxCategoryNameChars bounds each category name's length.
	MaxCategoryNameChars = 32

	// DefaultCreditBudget is the per-participant voting credit
	// budget when workflow creation does not override it.
	DefaultCreditBudget = 5

	// MaxActionItemDescriptionChars bounds action item descriptions.
	MaxActionItemDescriptionChars = 500

	// MaxVerifiers bounds the verifier set per action item.
	MaxVerifiers = 8
)
