// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages long-lived interactive processes on behalf
// of an agent's tool loop.
//
// A Manager owns a registry of sessions keyed by monotonically
// increasing string ids. Create spawns a command through the sandbox
// boundary on a PTY and returns whatever output arrives within the
// caller's yield window; WriteStdin feeds more input to an existing
// session and again waits up to the yield window for a response. The
// yield window bounds the wait, never the process: an interactive
// program keeps running after the call returns and can be polled
// again later.
//
// Ids that never existed and ids whose sessions have been closed or
// evicted are indistinguishable: both yield ErrUnknownSession. A
// background sweep evicts sessions idle past the configured window,
// and a capacity limit prunes the least recently used sessions
// outside a small protected set, preferring ones whose process has
// already exited. Eviction racing an in-flight WriteStdin is safe:
// the racer loses and sees ErrUnknownSession.
package session
