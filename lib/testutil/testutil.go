// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Warden packages.
//
// [Receive], [Send], and [Eventually] wrap the timeout safety valve
// pattern (select with a wall-clock fallback) so individual tests do
// not hang forever when an expected event never arrives. These are
// the only sanctioned uses of real wall-clock time in the test suite;
// timed behavior under test runs against a clock.FakeClock.
//
// All helpers call t.Fatalf on failure, since a missed event during
// setup is never recoverable.
package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of *testing.T these helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Receive reads one value from ch within timeout or fails the test.
func Receive[T any](t TB, ch <-chan T, timeout time.Duration, what string, args ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while %s", fmt.Sprintf(what, args...))
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v while %s", timeout, fmt.Sprintf(what, args...))
	}
	panic("unreachable")
}

// Send delivers v on ch within timeout or fails the test.
func Send[T any](t TB, ch chan<- T, v T, timeout time.Duration, what string, args ...any) {
	t.Helper()
	select {
	case ch <- v:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v while %s", timeout, fmt.Sprintf(what, args...))
	}
}

// Eventually polls condition every interval until it returns true or
// timeout elapses, failing the test on timeout. Use only for
// conditions driven by real OS events (process exit, file creation)
// that cannot be scheduled on a fake clock.
func Eventually(t TB, timeout, interval time.Duration, condition func() bool, what string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, fmt.Sprintf(what, args...))
		}
		time.Sleep(interval)
	}
}
