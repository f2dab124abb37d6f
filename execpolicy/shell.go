// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"path"
	"strings"
)

// shellWrappers are the interpreters whose -c scripts are split into
// plain commands for per-command evaluation.
var shellWrappers = map[string]bool{
	"bash": true,
	"sh":   true,
	"zsh":  true,
}

// shellScript extracts the script from a shell wrapper invocation:
// "bash -c SCRIPT", "sh -lc SCRIPT", "zsh -l -c SCRIPT". Returns
// false for anything else, including wrapper invocations carrying
// extra arguments after the script (those become positional
// parameters, which the splitter cannot reason about).
func shellScript(call ExecCall) (string, bool) {
	if !shellWrappers[path.Base(call.Program)] {
		return "", false
	}
	args := call.Args
	// Strip a leading -l or the combined -lc form.
	switch {
	case len(args) >= 2 && (args[0] == "-c" || args[0] == "-lc") && len(args) == 2:
		return args[1], true
	case len(args) == 3 && args[0] == "-l" && args[1] == "-c":
		return args[2], true
	default:
		return "", false
	}
}

// splitPlainCommands splits a shell script into its constituent
// commands, accepting only the provably-analyzable subset: words,
// single- and double-quoted strings without expansions, and the
// separators &&, ||, ;, | and newline. Returns false if the script
// uses any other shell feature (variables, substitution, globs,
// redirection, subshells, background jobs), in which case the caller
// must treat the whole script as unparseable.
func splitPlainCommands(script string) ([][]string, bool) {
	var commands [][]string
	var current []string
	var word strings.Builder
	wordStarted := false

	flushWord := func() {
		if wordStarted {
			current = append(current, word.String())
			word.Reset()
			wordStarted = false
		}
	}
	flushCommand := func() bool {
		flushWord()
		if len(current) == 0 {
			return false
		}
		commands = append(commands, current)
		current = nil
		return true
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case ' ', '\t':
			flushWord()
		case '\n', ';':
			// Empty segments around ; and newline carry no hidden
			// semantics, so they are tolerated.
			flushCommand()
		case '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++
			}
			if !flushCommand() {
				return nil, false
			}
		case '&':
			if i+1 >= len(runes) || runes[i+1] != '&' {
				// A single & backgrounds the job; not analyzable.
				return nil, false
			}
			i++
			if !flushCommand() {
				return nil, false
			}
		case '\'':
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end >= len(runes) {
				return nil, false
			}
			word.WriteString(string(runes[i+1 : end]))
			wordStarted = true
			i = end
		case '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				// Expansions inside double quotes defeat static
				// analysis.
				if runes[end] == '$' || runes[end] == '`' || runes[end] == '\\' {
					return nil, false
				}
				end++
			}
			if end >= len(runes) {
				return nil, false
			}
			word.WriteString(string(runes[i+1 : end]))
			wordStarted = true
			i = end
		case '$', '`', '\\', '<', '>', '(', ')', '{', '}', '*', '?', '~', '#', '!':
			return nil, false
		default:
			word.WriteRune(r)
			wordStarted = true
		}
	}

	flushCommand()
	if len(commands) == 0 {
		return nil, false
	}
	return commands, true
}
