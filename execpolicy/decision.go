// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import "fmt"

// Decision is the policy engine's verdict for one ExecCall. Decisions
// are totally ordered: Allow < Prompt < Forbidden. When multiple rules
// or sub-commands contribute decisions, the most restrictive wins.
type Decision int

const (
	// Allow permits the command to run unattended (inside the
	// configured sandbox).
	Allow Decision = iota

	// Prompt requires a human to approve the command before it runs.
	// This is also the default for commands no rule matches.
	Prompt

	// Forbidden blocks the command unconditionally. No approval flow
	// can override it.
	Forbidden
)

// String returns the lowercase wire form used in rule files and
// rollout records.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Prompt:
		return "prompt"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDecision parses the wire form of a decision.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "allow":
		return Allow, nil
	case "prompt":
		return Prompt, nil
	case "forbidden":
		return Forbidden, nil
	default:
		return Prompt, fmt.Errorf("unknown decision %q (want allow, prompt, or forbidden)", s)
	}
}

// MostRestrictive returns the stricter of two decisions.
func MostRestrictive(a, b Decision) Decision {
	if b > a {
		return b
	}
	return a
}
