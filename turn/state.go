// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package turn

import "fmt"

// State is a coordinator's lifecycle position.
type State int

const (
	// Idle means no turn is running and no unconsumed result is
	// pending.
	Idle State = iota

	// Running means a turn is in flight.
	Running

	// Completed means the turn finished, possibly carrying a
	// recoverable error payload for the model.
	Completed

	// Failed means infrastructure faulted; the turn is not retried
	// automatically.
	Failed

	// Cancelled means the turn was cancelled and the underlying
	// process is confirmed terminated.
	Cancelled
)

// String returns the state name as recorded in rollouts.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends a turn.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// TaskKind discriminates what a turn is doing.
type TaskKind int

const (
	// ToolCall runs a single gated command.
	ToolCall TaskKind = iota

	// ToolChain runs a sequence of gated commands as one turn.
	ToolChain

	// SessionWrite feeds stdin to a managed interactive session.
	SessionWrite
)

// String returns the kind name as recorded in rollouts.
func (k TaskKind) String() string {
	switch k {
	case ToolCall:
		return "tool_call"
	case ToolChain:
		return "tool_chain"
	case SessionWrite:
		return "session_write"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
