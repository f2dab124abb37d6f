// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/warden/lib/clock"
)

const (
	sessionsDir = "sessions"
	archivedDir = "archived_sessions"

	filePrefix    = "rollout-"
	fileExt       = ".jsonl"
	compressedExt = ".jsonl.zst"

	// filenameTimeLayout keeps filenames shell-safe and
	// lexically chronological.
	filenameTimeLayout = "2006-01-02T15-04-05"
)

// Recorder owns one conversation's rollout file. It holds an
// exclusive lock on the file for its lifetime; a second Recorder for
// the same conversation fails at open. All appends are serialized
// and durable before Append returns.
type Recorder struct {
	id    ConversationID
	path  string
	clock clock.Clock

	mu   sync.Mutex
	file *os.File
}

// Options configures a Recorder.
type Options struct {
	// Clock defaults to the real clock.
	Clock clock.Clock
}

// New creates the rollout file for a new conversation under
// root/sessions/YYYY/MM/DD/ and writes its session_meta line. The
// meta's ID is generated when empty; its Timestamp is always set
// here.
func New(root string, meta SessionMeta, opts Options) (*Recorder, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	if meta.ID == "" {
		meta.ID = NewConversationID()
	}
	now := clk.Now().UTC()
	meta.Timestamp = now

	dir := filepath.Join(root, sessionsDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating rollout directory: %w", err)
	}
	path := filepath.Join(dir, filePrefix+now.Format(filenameTimeLayout)+"-"+string(meta.ID)+fileExt)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating rollout file: %w", err)
	}
	if err := lockFile(file); err != nil {
		file.Close()
		return nil, err
	}

	recorder := &Recorder{id: meta.ID, path: path, clock: clk, file: file}
	if err := recorder.Append(Event{Type: TypeSessionMeta, Payload: &meta}); err != nil {
		recorder.Close()
		os.Remove(path)
		return nil, err
	}
	return recorder, nil
}

// Resume reopens an existing rollout file for appending, taking the
// exclusive lock and returning the recorded session metadata.
func Resume(path string, opts Options) (*Recorder, *SessionMeta, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	meta, _, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("reopening rollout file: %w", err)
	}
	if err := lockFile(file); err != nil {
		file.Close()
		return nil, nil, err
	}
	return &Recorder{id: meta.ID, path: path, clock: clk, file: file}, meta, nil
}

// lockFile takes a non-blocking exclusive flock; failure means
// another recorder holds the conversation open for writing.
func lockFile(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("locking %s (already held by another writer?): %w", file.Name(), err)
	}
	return nil
}

// ID returns the conversation id.
func (r *Recorder) ID() ConversationID { return r.id }

// Path returns the rollout file path.
func (r *Recorder) Path() string { return r.path }

// Append writes one event as a JSONL record and syncs it to stable
// storage before returning. Appends are totally ordered by call
// order.
func (r *Recorder) Append(event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event.Type, err)
	}
	record, err := json.Marshal(line{
		Timestamp: r.clock.Now().UTC(),
		Type:      event.Type,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", event.Type, err)
	}
	return r.appendRaw(append(record, '\n'))
}

// appendRaw writes pre-encoded record bytes. Used by Append and by
// fork's verbatim history copy.
func (r *Recorder) appendRaw(record []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return fmt.Errorf("rollout %s: recorder closed", r.id)
	}
	if _, err := r.file.Write(record); err != nil {
		return fmt.Errorf("appending to rollout %s: %w", r.id, err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("syncing rollout %s: %w", r.id, err)
	}
	return nil
}

// Close releases the file lock and closes the file. The recorder
// cannot append afterwards.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	file := r.file
	r.file = nil
	unix.Flock(int(file.Fd()), unix.LOCK_UN)
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing rollout %s: %w", r.id, err)
	}
	return nil
}
