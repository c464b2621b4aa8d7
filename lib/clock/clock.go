// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject a Fake with deterministic control.
//
// Every production function that needs the current time (record
// timestamps, delegation token expiry checks) accepts a Clock or is a
// method on a struct with a Clock field, instead of calling time.Now
// directly. Expiry boundaries ("valid until exactly now") are
// untestable against the real clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
