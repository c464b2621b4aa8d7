// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package address implements deterministic record addressing.
//
// Every persisted record lives at an address derived purely from its
// parent chain and index. Callers re-derive the address they expect
// and compare it against what they were handed; a mismatch means the
// caller supplied a substituted or mis-parented record and the call
// is rejected before any state is read through it.
package address
