// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "fmt"

// Rule maps a pattern over ExecCalls to a Decision. Exactly one of
// Prefix, Exact, or Shape must be set. Rules are immutable once the
// policy is built.
type Rule struct {
	// Name identifies the rule in validation errors and rollout
	// records. Required and unique within a policy.
	Name string `json:"name"`

	// Prefix matches any call whose argv begins with these tokens.
	Prefix []string `json:"prefix,omitempty"`

	// Exact matches only a call whose argv equals these tokens.
	Exact []string `json:"exact,omitempty"`

	// Shape names a registered structural parser (see shape.go) that
	// accepts only a provably-safe syntactic subset of one command.
	Shape string `json:"shape,omitempty"`

	// Decision is the verdict when the pattern matches.
	Decision Decision `json:"decision"`

	// Examples are the rule's regression gate, replayed by
	// Policy.Validate.
	Examples Examples `json:"examples,omitempty"`
}

// Examples holds curated calls for rule validation. Good calls must
// match the rule's pattern; bad calls must not. For allow rules the
// good calls double as known-safe examples and the bad calls as calls
// the rule must not accidentally cover.
type Examples struct {
	Good [][]string `json:"good,omitempty"`
	Bad  [][]string `json:"bad,omitempty"`
}

// Matches reports whether the rule's pattern covers the call.
func (r *Rule) Matches(call ExecCall) bool {
	switch {
	case len(r.Exact) > 0:
		return argvEqual(call.Argv(), r.Exact)
	case len(r.Prefix) > 0:
		return argvHasPrefix(call.Argv(), r.Prefix)
	case r.Shape != "":
		check, ok := shapeChecks[r.Shape]
		return ok && check(call.Argv())
	default:
		return false
	}
}

// checkStructure verifies the rule is well formed. Called when a
// policy is built; a malformed rule is a fatal configuration error.
func (r *Rule) checkStructure() error {
	if r.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	set := 0
	if len(r.Prefix) > 0 {
		set++
	}
	if len(r.Exact) > 0 {
		set++
	}
	if r.Shape != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("rule %q: exactly one of prefix, exact, or shape must be set", r.Name)
	}
	if r.Shape != "" {
		if _, ok := shapeChecks[r.Shape]; !ok {
			return fmt.Errorf("rule %q: unknown shape check %q", r.Name, r.Shape)
		}
	}
	if r.Decision < Allow || r.Decision > Forbidden {
		return fmt.Errorf("rule %q: invalid decision %d", r.Name, int(r.Decision))
	}
	return nil
}

func argvEqual(argv, want []string) bool {
	if len(argv) != len(want) {
		return false
	}
	for i := range argv {
		if argv[i] != want[i] {
			return false
		}
	}
	return true
}

func argvHasPrefix(argv, prefix []string) bool {
	if len(argv) < len(prefix) {
		return false
	}
	for i := range prefix {
		if argv[i] != prefix[i] {
			return false
		}
	}
	return true
}
