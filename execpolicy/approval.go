// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "fmt"

// ApprovalPolicy governs how a Prompt decision is resolved: whether a
// human is asked, and when.
type ApprovalPolicy int

const (
	// ApproveNever auto-rejects every Prompt decision. This is the
	// non-interactive mode: Prompt behaves exactly like Forbidden.
	ApproveNever ApprovalPolicy = iota

	// ApproveOnRequest asks the human whenever policy prompts.
	ApproveOnRequest

	// ApproveOnFailure first lets the command run inside the sandbox
	// without interruption; only if that attempt fails is the human
	// asked whether to retry without confinement, with the failed
	// attempt's output attached to the prompt.
	ApproveOnFailure

	// ApproveAlways asks the human whenever policy prompts, and
	// additionally surfaces prompts the model requests itself.
	ApproveAlways
)

// String returns the wire form used in configuration.
func (p ApprovalPolicy) String() string {
	switch p {
	case ApproveNever:
		return "never"
	case ApproveOnRequest:
		return "on-request"
	case ApproveOnFailure:
		return "on-failure"
	case ApproveAlways:
		return "always"
	default:
		return fmt.Sprintf("approval(%d)", int(p))
	}
}

// ParseApprovalPolicy parses the configuration form of an approval
// policy.
func ParseApprovalPolicy(s string) (ApprovalPolicy, error) {
	switch s {
	case "never":
		return ApproveNever, nil
	case "on-request":
		return ApproveOnRequest, nil
	case "on-failure":
		return ApproveOnFailure, nil
	case "always":
		return ApproveAlways, nil
	default:
		return ApproveNever, fmt.Errorf("unknown approval policy %q (want never, on-request, on-failure, or always)", s)
	}
}
