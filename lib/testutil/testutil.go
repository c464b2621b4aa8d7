// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for retroflow
// packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and test runners can set TMPDIR to
// deeply nested paths that exceed it, making t.TempDir() unsuitable
// for socket files.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so individual tests do not need
// direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// SocketDir creates a short-named temporary directory directly in
// /tmp, removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "retroflow-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need distinguishable identifiers.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}

// DBPath returns a fresh database file path under the test's
// temporary directory. Each call returns a distinct path, so a test
// can open several independent stores. SQLite's plain ":memory:" form
// is unusable here: a connection pool over ":memory:" gives every
// connection its own private database.
func DBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), UniqueID("records")+".db")
}

// RequireReceive reads one value from ch within timeout, or fails the
// test.
func RequireReceive[T any](t interface {
	Helper()
	Fatalf(format string, args ...any)
}, ch <-chan T, timeout time.Duration, message string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", message)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, message)
	}
	panic("unreachable")
}
