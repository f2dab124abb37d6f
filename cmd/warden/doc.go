// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// warden gates, confines, and records command execution for coding
// agents.
//
// Usage:
//
//	warden run [flags] -- <command> [args...]
//	warden check [flags] -- <command> [args...]
//	warden allow [flags] -- <prefix>...
//	warden version
package main
