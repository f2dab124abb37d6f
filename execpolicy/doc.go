// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package execpolicy decides whether a command an agent wants to run
// may proceed unattended, must be confirmed by a human, or is
// forbidden outright.
//
// The unit of judgment is an [ExecCall]: a program name plus its
// argument vector. [Policy.Evaluate] maps a call to a [Decision]
// (Allow, Prompt, or Forbidden). Decisions are totally ordered by
// restrictiveness, and when several rules match the same call the most
// restrictive one wins. A call no rule matches resolves to Prompt —
// the engine fails closed, never open.
//
// Rules are data, not code. They are loaded once at startup from
// JSONC files (JSON with comments, so operators can document why a
// pattern exists) in a rules directory. A rule matches by exact argv,
// by argv prefix, or by a named shape check: a narrow structural
// parser that accepts only a provably-safe syntactic subset of one
// command (for example, sed invocations that can only print line
// ranges). Shape checks reject anything they cannot prove safe rather
// than guessing.
//
// Shell wrappers (bash -c, sh -lc) are split into their constituent
// plain commands with a deliberately conservative parser; a script
// using any shell feature beyond quoting and the &&, ||, ;, |
// separators is treated as unparseable and resolves to Prompt.
//
// Every ruleset carries curated good and bad example calls.
// [Policy.Validate] replays them through evaluation and refuses to
// produce a policy in which a known-dangerous example would run
// unattended or a known-safe example would be blocked. A ruleset that
// fails validation is a fatal configuration error: the engine does
// not start with rules it cannot trust.
//
// [ResolveDecision] combines a Decision with the session's
// [ApprovalPolicy] to produce the final approved/denied outcome,
// invoking a human prompt only where the combination requires one.
package execpolicy
