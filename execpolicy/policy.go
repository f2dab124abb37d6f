// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"fmt"
	"sync"
)

// Policy is an ordered, validated set of rules. Evaluation is pure
// and deterministic: the same call against the same rules always
// yields the same decision. The only mutation a live policy supports
// is appending allow-prefix rules recorded from user approvals
// (AddAllowPrefix), guarded by an internal lock.
type Policy struct {
	mu    sync.RWMutex
	rules []Rule
}

// Empty returns a policy with no rules. Every call evaluates to
// Prompt.
func Empty() *Policy {
	return &Policy{}
}

// New builds a policy from rules, checking structure and replaying
// each rule's examples. A malformed rule or a failing example is a
// fatal configuration error — no policy is returned.
func New(rules []Rule) (*Policy, error) {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if err := rules[i].checkStructure(); err != nil {
			return nil, err
		}
		if seen[rules[i].Name] {
			return nil, fmt.Errorf("duplicate rule name %q", rules[i].Name)
		}
		seen[rules[i].Name] = true
	}
	policy := &Policy{rules: rules}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// RuleMatch records one rule that matched during evaluation, and the
// sub-command it matched.
type RuleMatch struct {
	Rule     string   `json:"rule"`
	Command  []string `json:"command"`
	Decision Decision `json:"decision"`
}

// Evaluation is the detailed result of evaluating one ExecCall.
type Evaluation struct {
	// Decision is the most restrictive decision across all matched
	// rules and all sub-commands, with unmatched sub-commands
	// contributing Prompt.
	Decision Decision

	// Matches lists every rule that matched, in rule order.
	Matches []RuleMatch

	// Unmatched lists sub-commands no rule covered.
	Unmatched [][]string
}

// Evaluate returns the decision for a call. Shell wrapper calls
// (bash -c, sh -lc) are split into plain commands and each is judged
// separately; the strictest verdict wins. A script the conservative
// splitter cannot analyze resolves to Prompt, as does any command no
// rule matches.
func (p *Policy) Evaluate(call ExecCall) Decision {
	return p.EvaluateDetailed(call).Decision
}

// EvaluateDetailed is Evaluate with the full match breakdown, used
// for approval reasons and rule amendments.
func (p *Policy) EvaluateDetailed(call ExecCall) Evaluation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluateDetailedLocked(call)
}

func (p *Policy) evaluateDetailedLocked(call ExecCall) Evaluation {
	commands := [][]string{call.Argv()}
	if script, ok := shellScript(call); ok {
		split, parseable := splitPlainCommands(script)
		if !parseable {
			// The script uses shell features we cannot statically
			// analyze. Fail closed on the whole call.
			return Evaluation{Decision: Prompt, Unmatched: [][]string{call.Argv()}}
		}
		commands = split
	}

	result := Evaluation{Decision: Allow}
	for _, argv := range commands {
		sub, _ := CallFromArgv(argv)
		matched := false
		for i := range p.rules {
			rule := &p.rules[i]
			if !rule.Matches(sub) {
				continue
			}
			matched = true
			result.Matches = append(result.Matches, RuleMatch{
				Rule:     rule.Name,
				Command:  argv,
				Decision: rule.Decision,
			})
			result.Decision = MostRestrictive(result.Decision, rule.Decision)
		}
		if !matched {
			// No rule covers this command: fail closed.
			result.Unmatched = append(result.Unmatched, argv)
			result.Decision = MostRestrictive(result.Decision, Prompt)
		}
	}
	return result
}

// Rules returns a copy of the policy's rules in priority order.
func (p *Policy) Rules() []Rule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// AddAllowPrefix appends an allow rule for the given argv prefix to
// the live policy. Used when a human approves a command and asks for
// it to be remembered; the durable counterpart is AppendAllowPrefix.
func (p *Policy) AddAllowPrefix(prefix []string) error {
	if len(prefix) == 0 {
		return fmt.Errorf("empty prefix")
	}
	rule := Rule{
		Name:     allowPrefixRuleName(prefix),
		Prefix:   append([]string(nil), prefix...),
		Decision: Allow,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.rules {
		if p.rules[i].Name == rule.Name {
			return nil // already present
		}
	}
	p.rules = append(p.rules, rule)
	return nil
}
