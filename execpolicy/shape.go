// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "regexp"

// A shape check is a narrow structural parser for one command: it
// accepts an argv only when it can prove the invocation is limited to
// a known-safe syntactic subset, and rejects everything else. Shape
// checks never attempt general interpretation of the command's
// language — anything outside the subset is simply "not provably
// safe".
//
// Checks are registered here by name; rule files reference them via
// the "shape" field.
var shapeChecks = map[string]func(argv []string) bool{
	"sed-print-range": sedPrintRange,
	"git-read-only":   gitReadOnly,
}

// sedScript accepts only print-a-line-range scripts: "122,202p" or
// "47p". Any other sed script (substitution, deletion, in-place
// editing) is rejected.
var sedScript = regexp.MustCompile(`^\d+(,\d+)?p$`)

// plainPath rejects arguments that could be option flags or shell
// metacharacters smuggled through to the command.
var plainPath = regexp.MustCompile(`^[A-Za-z0-9._/@+:=,~^-]+$`)

// sedPrintRange accepts sed invocations of the form
//
//	sed [-n] RANGEp [file ...]
//
// where RANGE is a numeric line or line range. The -n flag is
// permitted because it only suppresses default output. File operands
// must look like plain paths and must not begin with a dash.
func sedPrintRange(argv []string) bool {
	if len(argv) < 2 || argv[0] != "sed" {
		return false
	}
	rest := argv[1:]
	if rest[0] == "-n" {
		rest = rest[1:]
	}
	if len(rest) == 0 || !sedScript.MatchString(rest[0]) {
		return false
	}
	for _, operand := range rest[1:] {
		if len(operand) == 0 || operand[0] == '-' || !plainPath.MatchString(operand) {
			return false
		}
	}
	return true
}

// gitReadOnlySubcommands are git subcommands that never mutate the
// repository or remotes regardless of their arguments, as long as the
// arguments stay within gitReadOnlyArg.
var gitReadOnlySubcommands = map[string]bool{
	"status": true,
	"log":    true,
	"diff":   true,
	"show":   true,
}

var gitReadOnlyArg = regexp.MustCompile(`^[A-Za-z0-9._/@+:=,~^{}*-]+$`)

// gitReadOnly accepts invocations of git's inspection subcommands.
// Arguments (flags, refs, paths) are restricted to a conservative
// character set so redirections and command substitutions cannot
// appear; the subcommand itself guarantees read-only behavior.
func gitReadOnly(argv []string) bool {
	if len(argv) < 2 || argv[0] != "git" {
		return false
	}
	if !gitReadOnlySubcommands[argv[1]] {
		return false
	}
	for _, arg := range argv[2:] {
		if arg == "" || !gitReadOnlyArg.MatchString(arg) {
			return false
		}
	}
	return true
}
