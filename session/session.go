// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/warden/sandbox"
)

// session is one registered interactive process. The per-session
// mutex serializes write-then-collect sequences so two callers
// polling the same session never interleave each other's output.
type session struct {
	id  string
	cmd *exec.Cmd
	// tty is the PTY master: writes feed the child's stdin, reads
	// carry its combined output.
	tty  *os.File
	ring *sandbox.Ring

	// mu serializes WriteStdin's write+collect against other callers.
	mu sync.Mutex

	// offset is the ring position already returned to callers.
	// Guarded by mu.
	offset uint64

	// exited closes when the child has been reaped; exitCode is
	// valid after that.
	exited   chan struct{}
	exitCode int

	// closed flips once, when the session is evicted or closed. A
	// caller that raced eviction observes it after taking mu and
	// reports ErrUnknownSession.
	closed atomic.Bool

	// lastActivity is guarded by the manager's lock.
	lastActivity time.Time
}

// pump copies PTY output into the ring until the child exits and the
// master reaches EOF (read errors on a closed or hung-up PTY end the
// loop).
func (s *session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.tty.Read(buf)
		if n > 0 {
			s.ring.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// reap waits for the child and records its exit code.
func (s *session) reap() {
	err := s.cmd.Wait()
	if s.cmd.ProcessState != nil {
		s.exitCode = s.cmd.ProcessState.ExitCode()
	} else if err != nil {
		s.exitCode = -1
	}
	close(s.exited)
}

// terminate marks the session closed, kills the process group, and
// releases the PTY. Idempotent.
func (s *session) terminate() {
	if s.closed.Swap(true) {
		return
	}
	sandbox.KillCommandGroup(s.cmd)
	s.tty.Close()
}

// writeStdin feeds data to the child through the PTY master. The
// caller holds s.mu, but terminate does not, so eviction can close
// the PTY between the caller's staleness check and the write; a
// write failure on a session that closed underneath us reports
// ErrUnknownSession like any other lost race.
func (s *session) writeStdin(data string) error {
	if data == "" {
		return nil
	}
	if _, err := s.tty.Write([]byte(data)); err != nil {
		if s.closed.Load() {
			return ErrUnknownSession
		}
		return fmt.Errorf("writing to session %s: %w", s.id, err)
	}
	return nil
}

// exitStatus returns the exit code if the child has exited.
func (s *session) exitStatus() *int {
	select {
	case <-s.exited:
		code := s.exitCode
		return &code
	default:
		return nil
	}
}
