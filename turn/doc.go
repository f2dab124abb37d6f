// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package turn drives one conversation's task lifecycle: evaluate a
// requested command against the execution policy, resolve approval,
// run it through the sandbox or a managed session, and record every
// step in the conversation's rollout.
//
// A Coordinator admits one running turn at a time; starting a second
// while one is running is rejected with ErrTurnInProgress, never
// queued. A turn moves Idle -> Running -> {Completed, Failed,
// Cancelled}, and the terminal state transitions back to Idle when
// the result is consumed by Wait. Cancellation is cooperative and
// monotonic: Cancel flags the turn, the in-flight process controller
// kills the child, and the state becomes Cancelled only after the OS
// confirms the exit, with whatever partial output was captured
// flushed into the result.
//
// Recoverable tool failures (denied by policy, non-zero exit,
// sandbox denial) complete the turn with an error payload for the
// model to react to. Infrastructure faults (spawn impossible,
// rollout append failing) fail the turn; retry belongs to the
// caller.
package turn
