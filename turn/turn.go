// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/rollout"
	"github.com/bureau-foundation/warden/sandbox"
	"github.com/bureau-foundation/warden/session"
)

// ErrTurnInProgress rejects a turn request while another is running.
// Requests are never queued; the caller decides whether to retry.
var ErrTurnInProgress = errors.New("turn: task already in progress")

// Config wires a Coordinator's collaborators.
type Config struct {
	// Policy gates every command. Required.
	Policy *execpolicy.Policy

	// Approval selects when a Prompt decision consults Ask.
	Approval execpolicy.ApprovalPolicy

	// Ask collects a human decision. May be nil (non-interactive);
	// prompts then deny.
	Ask execpolicy.PromptFunc

	// Sandbox confines approved commands.
	Sandbox sandbox.Policy

	// Sessions serves SessionWrite turns and interactive creates.
	Sessions *session.Manager

	// Recorder persists the turn history. Required: a turn whose
	// record cannot be written durably must not report success.
	Recorder *rollout.Recorder

	// Cwd and Env configure spawned processes.
	Cwd string
	Env map[string]string

	// MaxOutputTokens bounds output handed back per tool result.
	MaxOutputTokens int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is a finished turn's payload.
type Result struct {
	// Status is the terminal state the turn reached.
	Status State

	// Output is the captured (and token-bounded) process output,
	// including partial output from cancelled or denied runs.
	Output string

	Truncated  bool
	ExitStatus *int

	// ErrorMessage carries a recoverable error back to the model
	// when Status is Completed, or describes the fault when Failed.
	ErrorMessage string

	// SessionID is set when the turn opened or wrote to a session.
	SessionID string
}

// Coordinator admits one turn at a time for a conversation.
type Coordinator struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	active  *Turn
	counter int
}

// Turn is one admitted task.
type Turn struct {
	coordinator *Coordinator
	kind        TaskKind
	number      int

	ctx    context.Context
	cancel context.CancelFunc
	// cancelled is monotonic: set once by Cancel, never cleared.
	cancelled atomic.Bool

	done   chan struct{}
	result *Result

	consumeOnce sync.Once
}

// NewCoordinator validates config and returns an idle coordinator.
func NewCoordinator(config Config) (*Coordinator, error) {
	if config.Policy == nil {
		return nil, fmt.Errorf("turn: policy is required")
	}
	if config.Recorder == nil {
		return nil, fmt.Errorf("turn: rollout recorder is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{config: config, logger: logger, state: Idle}, nil
}

// State returns the coordinator's current lifecycle position:
// Running while a turn is in flight, the terminal state while its
// result is unconsumed, Idle otherwise.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// begin admits a turn or rejects with ErrTurnInProgress.
func (c *Coordinator) begin(ctx context.Context, kind TaskKind) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return nil, ErrTurnInProgress
	}
	c.counter++
	turnCtx, cancel := context.WithCancel(ctx)
	t := &Turn{
		coordinator: c,
		kind:        kind,
		number:      c.counter,
		ctx:         turnCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	c.state = Running
	c.active = t
	return t, nil
}

// finish records the terminal state and parks the result for Wait.
func (t *Turn) finish(result *Result) {
	c := t.coordinator
	if err := c.config.Recorder.Append(rollout.Event{
		Type: rollout.TypeTurnEnded,
		Payload: &rollout.TurnEnded{
			Turn:   t.number,
			Status: result.Status.String(),
			Error:  result.ErrorMessage,
		},
	}); err != nil {
		// The record of completion never became durable; the turn
		// must not report success.
		result.Status = Failed
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		c.logger.Error("recording turn end", "turn", t.number, "error", err)
	}

	c.mu.Lock()
	c.state = result.Status
	c.mu.Unlock()

	t.result = result
	t.cancel()
	close(t.done)
}

// Cancel flags the turn for cancellation. Monotonic and safe to call
// at any time; the state becomes Cancelled only once the underlying
// process is confirmed terminated.
func (t *Turn) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

// Number returns the turn's sequence number within the conversation.
func (t *Turn) Number() int { return t.number }

// Kind returns the turn's task kind.
func (t *Turn) Kind() TaskKind { return t.kind }

// Wait blocks until the turn reaches a terminal state and returns
// its result. The first return consumes the result, moving the
// coordinator back to Idle.
func (t *Turn) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}
	t.consumeOnce.Do(func() {
		c := t.coordinator
		c.mu.Lock()
		if c.active == t {
			c.state = Idle
			c.active = nil
		}
		c.mu.Unlock()
	})
	return t.result, nil
}
