// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/lib/truncate"
	"github.com/bureau-foundation/warden/rollout"
	"github.com/bureau-foundation/warden/sandbox"
	"github.com/bureau-foundation/warden/session"
)

// StartToolCall admits a turn that runs one gated command to
// completion through the sandbox.
func (c *Coordinator) StartToolCall(ctx context.Context, call execpolicy.ExecCall) (*Turn, error) {
	t, err := c.begin(ctx, ToolCall)
	if err != nil {
		return nil, err
	}
	go func() { t.finish(c.runCalls(t, []execpolicy.ExecCall{call})) }()
	return t, nil
}

// StartToolChain admits a turn that runs a sequence of gated
// commands, stopping at the first one that does not succeed.
func (c *Coordinator) StartToolChain(ctx context.Context, calls []execpolicy.ExecCall) (*Turn, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("turn: empty tool chain")
	}
	t, err := c.begin(ctx, ToolChain)
	if err != nil {
		return nil, err
	}
	go func() { t.finish(c.runCalls(t, calls)) }()
	return t, nil
}

// StartExecCommand admits a turn that gates a command and opens an
// interactive session for it. An empty command line is a
// caller-input error surfaced directly, not a turn.
func (c *Coordinator) StartExecCommand(ctx context.Context, req session.Request) (*Turn, error) {
	if len(req.Command) == 0 {
		return nil, session.ErrMissingCommandLine
	}
	if c.config.Sessions == nil {
		return nil, fmt.Errorf("turn: no session manager configured")
	}
	t, err := c.begin(ctx, ToolCall)
	if err != nil {
		return nil, err
	}
	go func() { t.finish(c.runExecCommand(t, req)) }()
	return t, nil
}

// StartSessionWrite admits a turn that feeds stdin to an existing
// session and collects its response.
func (c *Coordinator) StartSessionWrite(ctx context.Context, id string, data string, req session.Request) (*Turn, error) {
	if c.config.Sessions == nil {
		return nil, fmt.Errorf("turn: no session manager configured")
	}
	t, err := c.begin(ctx, SessionWrite)
	if err != nil {
		return nil, err
	}
	go func() { t.finish(c.runSessionWrite(t, id, data, req)) }()
	return t, nil
}

// recordStart appends the turn_started event. Failure fails the
// turn before any process runs.
func (c *Coordinator) recordStart(t *Turn) error {
	return c.config.Recorder.Append(rollout.Event{
		Type:    rollout.TypeTurnStarted,
		Payload: &rollout.TurnStarted{Turn: t.number, Kind: t.kind.String()},
	})
}

func failedResult(err error) *Result {
	return &Result{Status: Failed, ErrorMessage: err.Error()}
}

// runCalls executes a chain of gated commands as one turn.
func (c *Coordinator) runCalls(t *Turn, calls []execpolicy.ExecCall) *Result {
	if err := c.recordStart(t); err != nil {
		return failedResult(err)
	}

	var outputs []string
	var last *Result
	for _, call := range calls {
		result := c.runOneCall(t, call)
		if result.Output != "" {
			outputs = append(outputs, result.Output)
		}
		last = result
		if result.Status != Completed || result.ErrorMessage != "" {
			break
		}
		if result.ExitStatus != nil && *result.ExitStatus != 0 {
			break
		}
	}
	last.Output = strings.Join(outputs, "")
	return last
}

// runOneCall gates and executes a single command, recording the
// decision, any human approval, and the result.
func (c *Coordinator) runOneCall(t *Turn, call execpolicy.ExecCall) *Result {
	evaluation := c.config.Policy.EvaluateDetailed(call)
	reason := promptReason(evaluation)

	var recordErr error
	outcome, err := execpolicy.ResolveDecision(t.ctx, evaluation.Decision, c.config.Approval,
		execpolicy.PromptRequest{Call: call, Reason: reason},
		c.recordingAsk(&recordErr))
	if recordErr != nil {
		return failedResult(recordErr)
	}
	if err != nil && t.cancelled.Load() {
		// Cancelled while waiting on the approval channel; nothing
		// ran, so there is no exit to confirm.
		return &Result{Status: Cancelled, ErrorMessage: "cancelled while awaiting approval"}
	}

	if appendErr := c.config.Recorder.Append(rollout.Event{
		Type: rollout.TypeToolCall,
		Payload: &rollout.ToolCall{
			Call:     call,
			Decision: evaluation.Decision.String(),
			Outcome:  outcome.String(),
		},
	}); appendErr != nil {
		return failedResult(appendErr)
	}

	var result *Result
	switch outcome {
	case execpolicy.OutcomeDenied:
		message := fmt.Sprintf("command %q denied (%s)", call, reason)
		if err != nil {
			message = fmt.Sprintf("%s: %v", message, err)
		}
		result = &Result{Status: Completed, ErrorMessage: message}

	case execpolicy.OutcomeApproved:
		result = c.execute(t, call, c.config.Sandbox)

	case execpolicy.OutcomeRunThenEscalate:
		result = c.runThenEscalate(t, call, reason, &recordErr)
		if recordErr != nil {
			return failedResult(recordErr)
		}

	default:
		return failedResult(fmt.Errorf("unexpected outcome %s", outcome))
	}

	if result.Status == Failed {
		return result
	}
	if appendErr := c.config.Recorder.Append(rollout.Event{
		Type: rollout.TypeToolResult,
		Payload: &rollout.ToolResult{
			Output:     result.Output,
			Truncated:  result.Truncated,
			ExitStatus: result.ExitStatus,
			Error:      result.ErrorMessage,
		},
	}); appendErr != nil {
		return failedResult(appendErr)
	}
	return result
}

// recordingAsk wraps the configured prompt so every human decision
// lands in the rollout; a replayed conversation must not prompt
// again. A failed append is reported through recordErr.
func (c *Coordinator) recordingAsk(recordErr *error) execpolicy.PromptFunc {
	ask := c.config.Ask
	if ask == nil {
		return nil
	}
	return func(ctx context.Context, req execpolicy.PromptRequest) (bool, error) {
		approved, err := ask(ctx, req)
		if err != nil {
			return approved, err
		}
		if appendErr := c.config.Recorder.Append(rollout.Event{
			Type: rollout.TypeApproval,
			Payload: &rollout.Approval{
				Call:     req.Call,
				Approved: approved,
				Reason:   req.Reason,
			},
		}); appendErr != nil {
			*recordErr = appendErr
			return false, appendErr
		}
		return approved, nil
	}
}

// runThenEscalate runs the command sandboxed without asking; if the
// sandboxed attempt fails, the human is asked, with the failed
// output attached, whether to retry without confinement.
func (c *Coordinator) runThenEscalate(t *Turn, call execpolicy.ExecCall, reason string, recordErr *error) *Result {
	first := c.execute(t, call, c.config.Sandbox)
	if first.Status != Completed {
		return first
	}
	succeeded := first.ErrorMessage == "" && (first.ExitStatus == nil || *first.ExitStatus == 0)
	if succeeded {
		return first
	}

	ask := c.recordingAsk(recordErr)
	if ask == nil {
		return first
	}
	approved, err := ask(t.ctx, execpolicy.PromptRequest{
		Call:         call,
		Reason:       "sandboxed attempt failed",
		FailedOutput: first.Output,
	})
	if *recordErr != nil || err != nil || !approved {
		return first
	}
	c.logger.Info("escalating to unconfined retry", "command", call.String())
	return c.execute(t, call, sandbox.FullAccessPolicy())
}

// execute spawns the command under policy and waits it out,
// honoring cancellation: on cancel the child is killed and the
// result is not produced until the exit is confirmed, with partial
// output flushed.
func (c *Coordinator) execute(t *Turn, call execpolicy.ExecCall, policy sandbox.Policy) *Result {
	process, err := sandbox.Spawn(t.ctx, call, policy, sandbox.Options{
		Cwd:    c.config.Cwd,
		Env:    c.config.Env,
		Logger: c.logger,
	})
	if err != nil {
		// The sandbox could not be established at all.
		return failedResult(fmt.Errorf("spawning %q: %w", call, err))
	}

	select {
	case <-t.ctx.Done():
		process.Kill()
		<-process.Done()
		output, truncated := c.boundOutput(string(process.Output()))
		code := process.ExitCode()
		return &Result{
			Status:     Cancelled,
			Output:     output,
			Truncated:  truncated,
			ExitStatus: &code,
		}
	case <-process.Done():
	}

	code, waitErr := process.Wait(context.Background())
	output, truncated := c.boundOutput(string(process.Output()))
	result := &Result{
		Status:     Completed,
		Output:     output,
		Truncated:  truncated,
		ExitStatus: &code,
	}

	var denied *sandbox.DeniedError
	switch {
	case errors.As(waitErr, &denied):
		partial, partialTruncated := c.boundOutput(denied.PartialOutput)
		result.Output = partial
		result.Truncated = partialTruncated
		result.ErrorMessage = waitErr.Error()
	case waitErr != nil:
		return failedResult(waitErr)
	}
	return result
}

func (c *Coordinator) boundOutput(output string) (string, bool) {
	maxTokens := c.config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = session.DefaultMaxOutputTokens
	}
	return truncate.TokenHeadTail(output, maxTokens)
}

// runExecCommand gates a command and opens a managed session for it.
func (c *Coordinator) runExecCommand(t *Turn, req session.Request) *Result {
	if err := c.recordStart(t); err != nil {
		return failedResult(err)
	}
	call, _ := execpolicy.CallFromArgv(req.Argv())

	evaluation := c.config.Policy.EvaluateDetailed(call)
	reason := promptReason(evaluation)
	var recordErr error
	outcome, err := execpolicy.ResolveDecision(t.ctx, evaluation.Decision, c.config.Approval,
		execpolicy.PromptRequest{Call: call, Reason: reason},
		c.recordingAsk(&recordErr))
	if recordErr != nil {
		return failedResult(recordErr)
	}
	if appendErr := c.config.Recorder.Append(rollout.Event{
		Type: rollout.TypeToolCall,
		Payload: &rollout.ToolCall{
			Call:     call,
			Decision: evaluation.Decision.String(),
			Outcome:  outcome.String(),
		},
	}); appendErr != nil {
		return failedResult(appendErr)
	}
	if outcome == execpolicy.OutcomeDenied {
		message := fmt.Sprintf("command %q denied (%s)", call, reason)
		if err != nil {
			message = fmt.Sprintf("%s: %v", message, err)
		}
		return c.recordSessionResult(&Result{Status: Completed, ErrorMessage: message})
	}
	// Session creates have no unconfined retry: an escalation
	// outcome runs the sandboxed attempt and reports its failure.

	created, err := c.config.Sessions.Create(t.ctx, req)
	if err != nil {
		return failedResult(fmt.Errorf("creating session: %w", err))
	}
	return c.sessionOutcome(t, created)
}

// runSessionWrite feeds stdin to an existing session.
func (c *Coordinator) runSessionWrite(t *Turn, id string, data string, req session.Request) *Result {
	if err := c.recordStart(t); err != nil {
		return failedResult(err)
	}
	written, err := c.config.Sessions.WriteStdin(t.ctx, id, data, req)
	if errors.Is(err, session.ErrUnknownSession) {
		// Handed back to the model as data; it can open a new
		// session and retry.
		return c.recordSessionResult(&Result{
			Status:       Completed,
			ErrorMessage: err.Error(),
			SessionID:    id,
		})
	}
	if err != nil {
		return failedResult(err)
	}
	return c.sessionOutcome(t, written)
}

// sessionOutcome converts a session payload into a turn result,
// closing the session first when the turn was cancelled: Cancelled
// is only reported once the process exit is confirmed.
func (c *Coordinator) sessionOutcome(t *Turn, payload *session.Result) *Result {
	result := &Result{
		Status:     Completed,
		Output:     payload.Output,
		Truncated:  payload.Truncated,
		ExitStatus: payload.ExitStatus,
		SessionID:  payload.SessionID,
	}
	if t.cancelled.Load() {
		// Close waits for the exit; partial output stays in the
		// result.
		c.config.Sessions.Close(payload.SessionID)
		result.Status = Cancelled
	}
	return c.recordSessionResult(result)
}

func (c *Coordinator) recordSessionResult(result *Result) *Result {
	if result.Status == Failed {
		return result
	}
	if err := c.config.Recorder.Append(rollout.Event{
		Type: rollout.TypeToolResult,
		Payload: &rollout.ToolResult{
			SessionID:  result.SessionID,
			Output:     result.Output,
			Truncated:  result.Truncated,
			ExitStatus: result.ExitStatus,
			Error:      result.ErrorMessage,
		},
	}); err != nil {
		return failedResult(err)
	}
	return result
}

// promptReason summarizes why a decision prompted: the restrictive
// matched rules, or the absence of any match.
func promptReason(evaluation execpolicy.Evaluation) string {
	if len(evaluation.Matches) == 0 {
		return "no rule matched"
	}
	names := make([]string, 0, len(evaluation.Matches))
	for _, match := range evaluation.Matches {
		names = append(names, match.Rule)
	}
	return "matched " + strings.Join(names, ", ")
}
