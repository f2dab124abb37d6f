// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rollout records conversation history as append-only JSONL
// files, the sole source of truth for resuming, auditing, and
// forking a conversation.
//
// Active conversations live under <root>/sessions/YYYY/MM/DD/ in
// files named rollout-<timestamp>-<uuid>.jsonl so a directory
// listing sorts chronologically. Archived conversations move to a
// mirrored tree under <root>/archived_sessions/; archiving is a
// move, never a delete, optionally compressing with zstd. Each line
// is one self-describing JSON record {timestamp, type, payload}, so
// a file cut short by a crash stays parseable up to the last
// complete line.
//
// A Recorder holds an exclusive file lock for its lifetime: no two
// writers can hold the same conversation open, and every Append is
// synced to stable storage before it returns. Forking copies the
// ancestor's first k event lines verbatim under a fresh conversation
// id; the ancestor is untouched.
package rollout
