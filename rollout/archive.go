// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"golang.org/x/sys/unix"
)

// Archive moves a conversation's rollout file from the active area
// to the mirrored archive tree, optionally compressing it with zstd.
// The record is never deleted: event ordering, ids, and content are
// preserved exactly. Returns the archived path.
func Archive(root string, id ConversationID, compress bool) (string, error) {
	path, err := Find(root, id)
	if err != nil {
		return "", err
	}
	activeRoot := filepath.Join(root, sessionsDir) + string(filepath.Separator)
	if !strings.HasPrefix(path, activeRoot) {
		return "", fmt.Errorf("rollout %s: already archived at %s", id, path)
	}

	// Refuse to archive a conversation that a live recorder still
	// holds open.
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening rollout for archive: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return "", fmt.Errorf("rollout %s: still open for writing: %w", id, err)
	}
	defer file.Close()

	relative := strings.TrimPrefix(path, activeRoot)
	dest := filepath.Join(root, archivedDir, relative)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	if !compress {
		if err := os.Rename(path, dest); err != nil {
			return "", fmt.Errorf("archiving rollout %s: %w", id, err)
		}
		return dest, nil
	}

	dest = strings.TrimSuffix(dest, fileExt) + compressedExt
	if err := compressTo(file, dest); err != nil {
		return "", fmt.Errorf("archiving rollout %s: %w", id, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("removing archived original: %w", err)
	}
	return dest, nil
}

// compressTo streams source into a zstd-compressed file at dest,
// writing through a temp file so a crash cannot leave a truncated
// archive that looks complete.
func compressTo(source io.Reader, dest string) error {
	tmp, err := os.OpenFile(dest+".tmp", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(encoder, source); err != nil {
		encoder.Close()
		tmp.Close()
		return err
	}
	if err := encoder.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// Fork creates a new conversation whose history begins with a
// verbatim copy of the ancestor's first k events, recorded under a
// fresh id with ancestry noted in its session meta. The ancestor's
// own record is untouched. The returned Recorder is open for the
// diverging continuation.
func Fork(root string, ancestorID ConversationID, k int, opts Options) (*Recorder, error) {
	path, err := Find(root, ancestorID)
	if err != nil {
		return nil, err
	}
	meta, events, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if k < 0 || k > len(events) {
		return nil, fmt.Errorf("fork point %d out of range: ancestor %s has %d events", k, ancestorID, len(events))
	}

	recorder, err := New(root, SessionMeta{
		Cwd:               meta.Cwd,
		Originator:        meta.Originator,
		PolicyFingerprint: meta.PolicyFingerprint,
		ForkedFrom: &ForkAncestry{
			ID:     meta.ID,
			Events: k,
		},
	}, opts)
	if err != nil {
		return nil, err
	}

	for _, event := range events[:k] {
		record, err := json.Marshal(line{
			Timestamp: event.Timestamp,
			Type:      event.Type,
			Payload:   event.Payload,
		})
		if err != nil {
			recorder.Close()
			return nil, fmt.Errorf("copying ancestor event: %w", err)
		}
		if err := recorder.appendRaw(append(record, '\n')); err != nil {
			recorder.Close()
			return nil, err
		}
	}
	return recorder, nil
}
