// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"context"
	"errors"
	"testing"
)

func TestResolveAllowAndForbiddenSkipPrompt(t *testing.T) {
	t.Parallel()
	ask := func(ctx context.Context, req PromptRequest) (bool, error) {
		t.Fatal("ask invoked for a non-prompt decision")
		return false, nil
	}

	outcome, err := ResolveDecision(context.Background(), Allow, ApproveAlways, PromptRequest{}, ask)
	if err != nil || outcome != OutcomeApproved {
		t.Errorf("Allow: outcome %s, err %v; want approved, nil", outcome, err)
	}
	outcome, err = ResolveDecision(context.Background(), Forbidden, ApproveAlways, PromptRequest{}, ask)
	if err != nil || outcome != OutcomeDenied {
		t.Errorf("Forbidden: outcome %s, err %v; want denied, nil", outcome, err)
	}
}

func TestResolvePromptNeverDeniesWithoutAsking(t *testing.T) {
	t.Parallel()
	asked := false
	ask := func(ctx context.Context, req PromptRequest) (bool, error) {
		asked = true
		return true, nil
	}
	outcome, err := ResolveDecision(context.Background(), Prompt, ApproveNever, PromptRequest{}, ask)
	if err != nil {
		t.Fatalf("ResolveDecision: %v", err)
	}
	if outcome != OutcomeDenied {
		t.Errorf("outcome = %s, want denied", outcome)
	}
	if asked {
		t.Error("ask invoked under ApproveNever")
	}
}

func TestResolvePromptOnFailureDefers(t *testing.T) {
	t.Parallel()
	outcome, err := ResolveDecision(context.Background(), Prompt, ApproveOnFailure, PromptRequest{}, nil)
	if err != nil {
		t.Fatalf("ResolveDecision: %v", err)
	}
	if outcome != OutcomeRunThenEscalate {
		t.Errorf("outcome = %s, want run-then-escalate", outcome)
	}
}

func TestResolvePromptAsks(t *testing.T) {
	t.Parallel()
	for _, approved := range []bool{true, false} {
		var seen PromptRequest
		ask := func(ctx context.Context, req PromptRequest) (bool, error) {
			seen = req
			return approved, nil
		}
		req := PromptRequest{Call: Call("rm", "stale.log"), Reason: "no rule matched"}
		outcome, err := ResolveDecision(context.Background(), Prompt, ApproveOnRequest, req, ask)
		if err != nil {
			t.Fatalf("ResolveDecision: %v", err)
		}
		want := OutcomeDenied
		if approved {
			want = OutcomeApproved
		}
		if outcome != want {
			t.Errorf("approved=%v: outcome = %s, want %s", approved, outcome, want)
		}
		if seen.Call.Program != "rm" || seen.Reason != "no rule matched" {
			t.Errorf("ask saw request %+v", seen)
		}
	}
}

func TestResolvePromptNilAskDenies(t *testing.T) {
	t.Parallel()
	outcome, err := ResolveDecision(context.Background(), Prompt, ApproveAlways, PromptRequest{}, nil)
	if err != nil {
		t.Fatalf("ResolveDecision: %v", err)
	}
	if outcome != OutcomeDenied {
		t.Errorf("outcome = %s, want denied when no prompt is wired", outcome)
	}
}

func TestResolveAskErrorDenies(t *testing.T) {
	t.Parallel()
	askErr := errors.New("terminal gone")
	ask := func(ctx context.Context, req PromptRequest) (bool, error) {
		return false, askErr
	}
	outcome, err := ResolveDecision(context.Background(), Prompt, ApproveAlways, PromptRequest{Call: Call("rm")}, ask)
	if !errors.Is(err, askErr) {
		t.Errorf("err = %v, want wrapped %v", err, askErr)
	}
	if outcome != OutcomeDenied {
		t.Errorf("outcome = %s, want denied on ask error", outcome)
	}
}
