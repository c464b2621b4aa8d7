// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package retro implements the retrospective workflow engine: staged
// workflows (setup, write-notes, group-duplicates, vote, discuss)
// with allowlisted participants, credit-limited group voting, and
// threshold-verified action items after closure.
//
// Every exported operation runs inside one store transaction and is
// all-or-nothing: authority resolution, validation, and mutation
// either all take effect or none do. Record addresses derive
// deterministically from their logical keys, so duplicate creation is
// detected by address occupancy rather than lookups.
package retro
