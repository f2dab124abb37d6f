// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox confines command execution behind an enforcement
// boundary that is established before the target program starts.
//
// Three policies are supported. ReadOnly lets the process read the
// whole filesystem but fail every write, with network egress denied.
// WorkspaceWrite permits writes only under an explicit set of
// writable roots (the working directory plus a scratch area by
// default) and denies network unless the policy allows it.
// DangerFullAccess runs the command unconfined, for callers who have
// explicitly opted out of sandboxing.
//
// On Linux, enforcement uses bubblewrap (bwrap): the filesystem view
// and namespaces are assembled by bwrap before it execs the target,
// so there is no window in which the unconfined program can act. On
// other platforms Spawn reports ErrNotSupported rather than running
// the command unconfined.
//
// Captured output is bounded: stdout and stderr feed a fixed-capacity
// ring buffer, and a blocked write or network attempt surfaces as a
// DeniedError carrying the output captured up to the denial point.
package sandbox
