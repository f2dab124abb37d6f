// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"context"
	"fmt"
)

// Outcome is the final disposition of one exec request after the
// policy decision has been combined with the approval policy.
type Outcome int

const (
	// OutcomeApproved lets the command run under the configured
	// sandbox policy.
	OutcomeApproved Outcome = iota

	// OutcomeDenied blocks the command.
	OutcomeDenied

	// OutcomeRunThenEscalate applies only under ApproveOnFailure: run
	// the command sandboxed without asking; if it fails, ask the
	// human — with the failed attempt's output attached — whether to
	// retry without confinement.
	OutcomeRunThenEscalate
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeDenied:
		return "denied"
	case OutcomeRunThenEscalate:
		return "run-then-escalate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PromptRequest is what the approval collaborator sees when a human
// decision is needed.
type PromptRequest struct {
	// Call is the command awaiting approval.
	Call ExecCall

	// Reason explains why the prompt is happening ("no rule matched",
	// a rule name, or "sandboxed attempt failed").
	Reason string

	// FailedOutput carries the sandboxed attempt's captured output
	// when the prompt follows an on-failure escalation. Empty
	// otherwise.
	FailedOutput string
}

// PromptFunc asks a human to approve or deny a command. It should
// block until the human answers or ctx is cancelled.
type PromptFunc func(ctx context.Context, req PromptRequest) (approved bool, err error)

// ResolveDecision combines a policy decision with the approval
// policy. Allow approves and Forbidden denies immediately, without
// consulting the prompt. Prompt consults the prompt only where the
// approval policy permits one: under ApproveNever (or a nil ask,
// the non-interactive case) it denies without asking, and under
// ApproveOnFailure it defers the question until a sandboxed attempt
// has failed.
//
// The caller is responsible for recording the returned outcome as a
// rollout approval event so a replayed turn does not re-prompt.
func ResolveDecision(ctx context.Context, decision Decision, approval ApprovalPolicy, req PromptRequest, ask PromptFunc) (Outcome, error) {
	switch decision {
	case Allow:
		return OutcomeApproved, nil
	case Forbidden:
		return OutcomeDenied, nil
	case Prompt:
		// Handled below.
	default:
		return OutcomeDenied, fmt.Errorf("invalid decision %d", int(decision))
	}

	switch approval {
	case ApproveNever:
		return OutcomeDenied, nil
	case ApproveOnFailure:
		return OutcomeRunThenEscalate, nil
	case ApproveOnRequest, ApproveAlways:
		if ask == nil {
			// No approval collaborator wired: non-interactive mode,
			// Prompt degrades to Forbidden.
			return OutcomeDenied, nil
		}
		approved, err := ask(ctx, req)
		if err != nil {
			return OutcomeDenied, fmt.Errorf("asking for approval of %q: %w", req.Call, err)
		}
		if approved {
			return OutcomeApproved, nil
		}
		return OutcomeDenied, nil
	default:
		return OutcomeDenied, fmt.Errorf("invalid approval policy %d", int(approval))
	}
}
