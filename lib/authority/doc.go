// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package authority resolves who a call is acting as.
//
// Every external call carries an Authority: a direct claim ("I am the
// caller") or a delegated one ("I am the delegate, acting as this
// principal via this token"). The Gate resolves the claim to one
// effective principal, consulting the delegation token record for
// delegated claims. Downstream components see only the resolved
// principal and apply the same checks regardless of which path
// produced it — an authority is never impersonated by construction.
package authority
