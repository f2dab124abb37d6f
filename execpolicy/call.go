// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "strings"

// ExecCall is a program name plus its argument vector — the canonical
// unit the policy engine reasons about. The zero value is invalid;
// construct with [Call] or [CallFromArgv].
type ExecCall struct {
	Program string   `json:"program"`
	Args    []string `json:"args,omitempty"`
}

// Call constructs an ExecCall from a program and its arguments.
func Call(program string, args ...string) ExecCall {
	return ExecCall{Program: program, Args: args}
}

// CallFromArgv constructs an ExecCall from a full argv. Returns false
// for an empty argv.
func CallFromArgv(argv []string) (ExecCall, bool) {
	if len(argv) == 0 {
		return ExecCall{}, false
	}
	return ExecCall{Program: argv[0], Args: argv[1:]}, true
}

// Argv returns the call as a single argument vector, program first.
func (c ExecCall) Argv() []string {
	argv := make([]string, 0, 1+len(c.Args))
	argv = append(argv, c.Program)
	return append(argv, c.Args...)
}

// String returns the display form "program arg1 arg2 ...".
func (c ExecCall) String() string {
	return strings.Join(c.Argv(), " ")
}
