// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/lib/clock"
	"github.com/bureau-foundation/warden/lib/truncate"
	"github.com/bureau-foundation/warden/sandbox"
)

const (
	// DefaultMaxSessions bounds the registry size.
	DefaultMaxSessions = 64

	// DefaultIdleTimeout is how long a session may sit without
	// activity before the background sweep evicts it.
	DefaultIdleTimeout = 10 * time.Minute

	// DefaultYield is the output wait used when a request does not
	// set one.
	DefaultYield = time.Second

	// DefaultMaxOutputTokens bounds the output returned per call.
	DefaultMaxOutputTokens = 2048

	// protectedRecent sessions are never pruned for capacity: the
	// most recently used ones are the ones the agent is most likely
	// to poll next.
	protectedRecent = 8

	// postExitGrace is how long a collect keeps draining after the
	// child exits, to catch output still buffered in the PTY.
	postExitGrace = 50 * time.Millisecond

	sweepInterval = 30 * time.Second
)

var (
	// ErrMissingCommandLine reports a create request with no command.
	// A caller-input error, distinct from policy and sandbox errors.
	ErrMissingCommandLine = errors.New("session: missing command line")

	// ErrUnknownSession reports an id that does not name a live
	// session. Never-existed, closed, and evicted ids are deliberately
	// indistinguishable.
	ErrUnknownSession = errors.New("session: unknown session id")

	// ErrSessionIDOnCreate reports a create request that names an
	// existing session. Writes go through WriteStdin.
	ErrSessionIDOnCreate = errors.New("session: create request must not carry a session id")

	errManagerClosed = errors.New("session: manager closed")
)

// Config configures a Manager.
type Config struct {
	// Sandbox is the confinement policy applied to every session.
	Sandbox sandbox.Policy

	// Cwd is the working directory for spawned processes. Defaults
	// to the manager process's current directory.
	Cwd string

	// Env is the child environment. Defaults to
	// sandbox.DefaultEnvironment().
	Env map[string]string

	// MaxSessions bounds the registry; creating past the bound
	// prunes the least recently used unprotected session. Defaults
	// to DefaultMaxSessions.
	MaxSessions int

	// IdleTimeout is the inactivity window before eviction. Defaults
	// to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// RingCapacity bounds each session's retained output. Defaults
	// to sandbox.DefaultRingCapacity.
	RingCapacity int

	// Clock defaults to the real clock. Tests inject a fake.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Request is one exec or stdin-write call.
type Request struct {
	// Command is the argv to spawn. Create only.
	Command []string

	// Shell, when set, wraps Command as a script run by this shell
	// ("/bin/bash" etc). Create only.
	Shell string

	// Login adds -l to the shell invocation. Meaningful only with
	// Shell.
	Login bool

	// SessionID must be empty on a create request; a create that
	// names a session is malformed. Stdin writes address the session
	// through WriteStdin's id parameter instead.
	SessionID string

	// Yield bounds how long the call waits for output before
	// returning what has accumulated. It is not a process timeout:
	// the process keeps running after the call returns. Defaults to
	// DefaultYield.
	Yield time.Duration

	// MaxOutputTokens bounds the returned output; longer output is
	// truncated in the middle, keeping the head and tail. Defaults
	// to DefaultMaxOutputTokens.
	MaxOutputTokens int
}

// Argv resolves the request's command line, wrapping it in the
// requested shell when one is named.
func (r Request) Argv() []string {
	if r.Shell == "" || len(r.Command) == 0 {
		return r.Command
	}
	flag := "-c"
	if r.Login {
		flag = "-lc"
	}
	quoted := make([]string, len(r.Command))
	for i, word := range r.Command {
		quoted[i] = shellQuote(word)
	}
	return []string{r.Shell, flag, strings.Join(quoted, " ")}
}

// shellQuote single-quotes a word unless it is already safe to pass
// bare.
func shellQuote(word string) string {
	if word != "" && !strings.ContainsAny(word, " \t\n\"'\\$`&|;<>()*?[]#~") {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}

// Result is the structured payload returned to the tool layer.
type Result struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output"`
	Truncated bool   `json:"truncated"`
	// ExitStatus is set once the process has exited.
	ExitStatus *int `json:"exit_status,omitempty"`
}

// Manager owns the session registry.
type Manager struct {
	sandboxPolicy sandbox.Policy
	cwd           string
	env           map[string]string
	maxSessions   int
	idleTimeout   time.Duration
	ringCapacity  int
	clock         clock.Clock
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	nextID   uint64
	closed   bool

	sweepTicker *clock.Ticker
	sweepStop   chan struct{}
	sweepDone   chan struct{}
}

// NewManager creates a Manager and starts its idle sweep.
func NewManager(config Config) *Manager {
	manager := &Manager{
		sandboxPolicy: config.Sandbox,
		cwd:           config.Cwd,
		env:           config.Env,
		maxSessions:   config.MaxSessions,
		idleTimeout:   config.IdleTimeout,
		ringCapacity:  config.RingCapacity,
		clock:         config.Clock,
		logger:        config.Logger,
		sessions:      make(map[string]*session),
		sweepStop:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	if manager.maxSessions <= 0 {
		manager.maxSessions = DefaultMaxSessions
	}
	if manager.idleTimeout <= 0 {
		manager.idleTimeout = DefaultIdleTimeout
	}
	if manager.clock == nil {
		manager.clock = clock.Real()
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	manager.sweepTicker = manager.clock.NewTicker(sweepInterval)
	go manager.sweep()
	return manager
}

// Create spawns a command on a PTY through the sandbox boundary,
// registers it under a fresh id, and returns the output that arrived
// within the yield window.
func (m *Manager) Create(ctx context.Context, req Request) (*Result, error) {
	if req.SessionID != "" {
		return nil, ErrSessionIDOnCreate
	}
	call, ok := execpolicy.CallFromArgv(req.Argv())
	if !ok {
		return nil, ErrMissingCommandLine
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errManagerClosed
	}
	var victim *session
	if len(m.sessions) >= m.maxSessions {
		victim = m.pruneLocked()
		if victim == nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("creating session: limit of %d reached with no prunable session", m.maxSessions)
		}
	}
	m.nextID++
	id := strconv.FormatUint(m.nextID, 10)
	m.mu.Unlock()

	if victim != nil {
		m.logger.Info("pruned session for capacity", "session", victim.id)
		victim.terminate()
	}

	// The command's lifetime is the session's, not this call's, so
	// it is not bound to the caller's ctx.
	cmd, err := sandbox.Command(context.Background(), call, m.sandboxPolicy, sandbox.Options{
		Cwd: m.cwd,
		Env: m.env,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s := &session{
		id:     id,
		cmd:    cmd,
		tty:    tty,
		ring:   sandbox.NewRing(m.ringCapacity),
		exited: make(chan struct{}),
	}
	go s.pump()
	go s.reap()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.terminate()
		return nil, errManagerClosed
	}
	s.lastActivity = m.clock.Now()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("session created", "session", id, "command", req.Command)

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.collect(ctx, s, req), nil
}

// WriteStdin writes to an existing session's stdin and returns the
// output that arrived within the yield window.
func (m *Manager) WriteStdin(ctx context.Context, id string, data string, req Request) (*Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.lastActivity = m.clock.Now()
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The session may have been evicted between lookup and lock; the
	// racer loses.
	if s.closed.Load() {
		return nil, ErrUnknownSession
	}

	if err := s.writeStdin(data); err != nil {
		return nil, err
	}
	return m.collect(ctx, s, req), nil
}

// Close terminates one session. Closing an unknown id is an error,
// indistinguishable from an already-closed one.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	s.terminate()
	// Do not report closed until the OS has confirmed the exit.
	<-s.exited
	m.logger.Debug("session closed", "session", id)
	return nil
}

// CloseAll terminates every session and stops the manager. The
// manager cannot be used afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	victims := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		victims = append(victims, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	close(m.sweepStop)
	m.sweepTicker.Stop()
	<-m.sweepDone
	for _, s := range victims {
		s.terminate()
	}
	for _, s := range victims {
		<-s.exited
	}
}

// collect drains output into the result until the yield window
// elapses, the caller's ctx ends, or the process exits (plus a short
// grace for final PTY output). Caller holds s.mu.
func (m *Manager) collect(ctx context.Context, s *session, req Request) *Result {
	yield := req.Yield
	if yield <= 0 {
		yield = DefaultYield
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	var collected []byte
	drain := func() {
		chunk := s.ring.ReadFrom(s.offset)
		collected = append(collected, chunk...)
		s.offset = s.ring.TotalWritten()
	}

	deadline := m.clock.After(yield)
	exitCh := s.exited
	var graceCh <-chan time.Time

	// If the process is already gone, only the grace wait applies.
	select {
	case <-exitCh:
		exitCh = nil
		graceCh = m.clock.After(postExitGrace)
	default:
	}

loop:
	for {
		drain()
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-graceCh:
			break loop
		case <-s.ring.Notify():
		case <-exitCh:
			exitCh = nil
			graceCh = m.clock.After(postExitGrace)
		}
	}
	drain()

	output, truncated := truncate.TokenHeadTail(string(collected), maxTokens)
	return &Result{
		SessionID:  s.id,
		Output:     output,
		Truncated:  truncated,
		ExitStatus: s.exitStatus(),
	}
}

// sweep evicts idle sessions until the manager closes.
func (m *Manager) sweep() {
	defer close(m.sweepDone)
	for {
		select {
		case <-m.sweepStop:
			return
		case <-m.sweepTicker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	now := m.clock.Now()
	m.mu.Lock()
	var victims []*session
	for id, s := range m.sessions {
		if now.Sub(s.lastActivity) >= m.idleTimeout {
			delete(m.sessions, id)
			victims = append(victims, s)
		}
	}
	m.mu.Unlock()

	for _, s := range victims {
		m.logger.Info("evicted idle session", "session", s.id)
		s.terminate()
	}
}

// pruneLocked removes and returns the best capacity-eviction victim:
// outside the protected most-recently-used set, preferring sessions
// whose process has already exited, oldest activity first. Returns
// nil if every session is protected. Caller holds m.mu.
func (m *Manager) pruneLocked() *session {
	if len(m.sessions) <= protectedRecent {
		return nil
	}
	ordered := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].lastActivity.Before(ordered[j].lastActivity)
	})
	candidates := ordered[:len(ordered)-protectedRecent]

	for _, s := range candidates {
		if s.exitStatus() != nil {
			delete(m.sessions, s.id)
			return s
		}
	}
	victim := candidates[0]
	delete(m.sessions, victim.id)
	return victim
}
