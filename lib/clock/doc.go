// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for deterministic testing.
//
// The delegation subsystem's expiry semantics are boundary-exact: a
// token with valid_until equal to the current second is usable, one
// second past is not. Those boundaries are only testable with an
// injected clock.
package clock
