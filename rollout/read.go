// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound reports that no rollout file exists for a conversation.
var ErrNotFound = errors.New("rollout: conversation not found")

// ReadFile parses a rollout file (plain or zstd-compressed) into its
// session metadata and events. A partial last line, as left by a
// crash mid-write, is tolerated: parsing stops at the last complete
// record. The returned events do not include the session_meta line.
func ReadFile(path string) (*SessionMeta, []RecordedEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening rollout file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, compressedExt) {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("opening compressed rollout %s: %w", path, err)
		}
		defer decoder.Close()
		reader = decoder
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var meta *SessionMeta
	var events []RecordedEvent
	for scanner.Scan() {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var record RecordedEvent
		if err := json.Unmarshal(text, &record); err != nil {
			// Incomplete or corrupt line; everything before it is
			// still good.
			continue
		}
		if meta == nil {
			if record.Type != TypeSessionMeta {
				return nil, nil, fmt.Errorf("rollout %s: first record is %q, want %q", path, record.Type, TypeSessionMeta)
			}
			meta = &SessionMeta{}
			if err := json.Unmarshal(record.Payload, meta); err != nil {
				return nil, nil, fmt.Errorf("rollout %s: decoding session meta: %w", path, err)
			}
			meta.Path = path
			continue
		}
		events = append(events, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading rollout %s: %w", path, err)
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("rollout %s: no session meta record", path)
	}
	return meta, events, nil
}

// Find locates the rollout file for a conversation id, searching the
// active area first and then the archive. Returns ErrNotFound if no
// file names the id.
func Find(root string, id ConversationID) (string, error) {
	for _, area := range []string{sessionsDir, archivedDir} {
		path, err := findInArea(filepath.Join(root, area), id)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

func findInArea(dir string, id ConversationID) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() || found != "" {
			return nil
		}
		name := entry.Name()
		if strings.HasSuffix(name, "-"+string(id)+fileExt) ||
			strings.HasSuffix(name, "-"+string(id)+compressedExt) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", dir, err)
	}
	return found, nil
}

// Filter narrows a List scan. The zero value matches everything.
type Filter struct {
	// Originator matches SessionMeta.Originator exactly when set.
	Originator string

	// After and Before bound the session start time when non-zero.
	After  time.Time
	Before time.Time

	// ActiveOnly skips the archive.
	ActiveOnly bool
}

func (f Filter) matches(meta *SessionMeta) bool {
	if f.Originator != "" && meta.Originator != f.Originator {
		return false
	}
	if !f.After.IsZero() && meta.Timestamp.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && meta.Timestamp.After(f.Before) {
		return false
	}
	return true
}

// listReadConcurrency bounds parallel file reads during a List scan.
const listReadConcurrency = 8

// List scans the store and returns matching session metadata, newest
// first. Every call re-reads the on-disk state; there is no cached
// view to go stale. A store accumulates one small file per
// conversation, so metadata reads run concurrently.
func List(root string, filter Filter) ([]SessionMeta, error) {
	areas := []string{sessionsDir}
	if !filter.ActiveOnly {
		areas = append(areas, archivedDir)
	}

	var paths []string
	for _, area := range areas {
		dir := filepath.Join(root, area)
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			name := entry.Name()
			if !strings.HasPrefix(name, filePrefix) {
				return nil
			}
			if !strings.HasSuffix(name, fileExt) && !strings.HasSuffix(name, compressedExt) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	var mu sync.Mutex
	var metas []SessionMeta
	var group errgroup.Group
	group.SetLimit(listReadConcurrency)
	for _, path := range paths {
		group.Go(func() error {
			meta, _, err := ReadFile(path)
			if err != nil {
				// An unreadable file should not hide the rest of
				// the store.
				return nil
			}
			if filter.matches(meta) {
				mu.Lock()
				metas = append(metas, *meta)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Timestamp.After(metas[j].Timestamp)
	})
	return metas, nil
}
