// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/warden/execpolicy"
)

// ConversationID identifies one recorded conversation.
type ConversationID string

// NewConversationID returns a fresh random conversation id.
func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

// EventType discriminates rollout records.
type EventType string

const (
	// TypeSessionMeta is always the first line of a rollout file.
	TypeSessionMeta EventType = "session_meta"

	TypeTurnStarted EventType = "turn_started"
	TypeTurnEnded   EventType = "turn_ended"
	TypeToolCall    EventType = "tool_call"
	TypeToolResult  EventType = "tool_result"

	// TypeApproval records a human approval or denial so a replayed
	// conversation does not prompt again.
	TypeApproval EventType = "approval"

	TypeTokenUsage EventType = "token_usage"
	TypeSessionEnd EventType = "session_end"
)

// Event is one record to append: a type and its payload.
type Event struct {
	Type    EventType
	Payload any
}

// line is the on-disk record shape.
type line struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// RecordedEvent is one event read back from a rollout file.
type RecordedEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// ForkAncestry records where a forked conversation came from.
type ForkAncestry struct {
	// ID is the ancestor conversation.
	ID ConversationID `json:"id"`

	// Events is the number of ancestor events copied before the
	// fork diverges.
	Events int `json:"events"`
}

// SessionMeta is the first record of every rollout file: enough
// context to attribute and resume the conversation.
type SessionMeta struct {
	ID         ConversationID `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Cwd        string         `json:"cwd,omitempty"`
	Originator string         `json:"originator,omitempty"`

	// PolicyFingerprint is the execpolicy ruleset fingerprint in
	// force when the conversation started, so every recorded
	// decision is attributable to an exact ruleset.
	PolicyFingerprint string `json:"policy_fingerprint,omitempty"`

	ForkedFrom *ForkAncestry `json:"forked_from,omitempty"`

	// Path is where the file was found. Set by List and Find, not
	// persisted.
	Path string `json:"-"`
}

// TurnStarted marks the beginning of a turn.
type TurnStarted struct {
	Turn int    `json:"turn"`
	Kind string `json:"kind"`
}

// TurnEnded marks a turn reaching a terminal state.
type TurnEnded struct {
	Turn   int    `json:"turn"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ToolCall records a gated command request and its policy outcome.
type ToolCall struct {
	Call     execpolicy.ExecCall `json:"call"`
	Decision string              `json:"decision"`
	Outcome  string              `json:"outcome"`
}

// ToolResult records what a tool invocation produced.
type ToolResult struct {
	SessionID  string `json:"session_id,omitempty"`
	Output     string `json:"output"`
	Truncated  bool   `json:"truncated,omitempty"`
	ExitStatus *int   `json:"exit_status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Approval records a human decision on a prompted command.
type Approval struct {
	Call     execpolicy.ExecCall `json:"call"`
	Approved bool                `json:"approved"`
	Reason   string              `json:"reason,omitempty"`
}

// TokenUsage records per-turn token accounting.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}
