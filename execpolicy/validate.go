// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "fmt"

// Validate replays every rule's examples through the policy. It fails
// if a good example does not match its own rule (the example
// exercises nothing, so the rule's coverage is unproven), if a bad
// example does match (the pattern is broader than intended), if a
// good example of an allow rule does not resolve to Allow under the
// full policy, or if a bad example of an allow rule does. This is
// the regression gate that keeps a rule edit from silently loosening
// policy; it runs at load time, never at evaluation time.
func (p *Policy) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := range p.rules {
		rule := &p.rules[i]
		for _, argv := range rule.Examples.Good {
			call, ok := CallFromArgv(argv)
			if !ok {
				return fmt.Errorf("rule %q: empty good example", rule.Name)
			}
			if !rule.Matches(call) {
				return fmt.Errorf("rule %q: good example %q does not match the rule", rule.Name, call)
			}
			if rule.Decision == Allow {
				if got := p.evaluateLocked(call); got != Allow {
					return fmt.Errorf("rule %q: good example %q resolves to %s, want allow", rule.Name, call, got)
				}
			}
		}
		for _, argv := range rule.Examples.Bad {
			call, ok := CallFromArgv(argv)
			if !ok {
				return fmt.Errorf("rule %q: empty bad example", rule.Name)
			}
			if rule.Matches(call) {
				return fmt.Errorf("rule %q: bad example %q matches the rule", rule.Name, call)
			}
		}
	}
	return nil
}

// CheckExamples verifies curated example lists against the policy:
// every safe call must resolve to Allow, and no dangerous call may.
// Use this as the startup gate for a deployment's known-safe and
// known-dangerous corpora.
func (p *Policy) CheckExamples(safe, dangerous []ExecCall) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, call := range safe {
		if got := p.evaluateLocked(call); got != Allow {
			return fmt.Errorf("known-safe call %q resolves to %s, want allow", call, got)
		}
	}
	for _, call := range dangerous {
		if got := p.evaluateLocked(call); got == Allow {
			return fmt.Errorf("known-dangerous call %q resolves to allow", call)
		}
	}
	return nil
}

// evaluateLocked is Evaluate without re-acquiring the read lock.
func (p *Policy) evaluateLocked(call ExecCall) Decision {
	return p.evaluateDetailedLocked(call).Decision
}
