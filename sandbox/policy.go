// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Mode selects the confinement level.
type Mode int

const (
	// ReadOnly permits reads of the entire filesystem and nothing
	// else: every write fails and network egress is denied.
	ReadOnly Mode = iota

	// WorkspaceWrite permits writes under the policy's writable roots
	// and denies network unless the policy allows it.
	WorkspaceWrite

	// DangerFullAccess disables confinement entirely.
	DangerFullAccess
)

// String returns the mode's configuration spelling.
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WorkspaceWrite:
		return "workspace-write"
	case DangerFullAccess:
		return "danger-full-access"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ReadOnly, WorkspaceWrite, DangerFullAccess:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("invalid sandbox mode %d", int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler; the yaml package does not
// consult encoding.TextMarshaler on its own.
func (m Mode) MarshalYAML() (any, error) {
	text, err := m.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("sandbox mode must be a string: %w", err)
	}
	return m.UnmarshalText([]byte(s))
}

// ParseMode parses a configuration-file mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "read-only":
		return ReadOnly, nil
	case "workspace-write":
		return WorkspaceWrite, nil
	case "danger-full-access":
		return DangerFullAccess, nil
	default:
		return 0, fmt.Errorf("unknown sandbox mode %q (want read-only, workspace-write, or danger-full-access)", s)
	}
}

// Policy describes a confinement configuration. The zero value is
// ReadOnly, the most restrictive mode.
type Policy struct {
	// Mode selects the confinement level.
	Mode Mode `json:"mode" yaml:"mode"`

	// WritableRoots lists extra directories writable under
	// WorkspaceWrite, in addition to the working directory and the
	// scratch area. Ignored by the other modes.
	WritableRoots []string `json:"writable_roots,omitempty" yaml:"writable_roots,omitempty"`

	// NetworkAllowed permits network egress under WorkspaceWrite.
	// Ignored by the other modes (ReadOnly always denies,
	// DangerFullAccess always allows).
	NetworkAllowed bool `json:"network_allowed,omitempty" yaml:"network_allowed,omitempty"`

	// ExcludeSlashTmp leaves /tmp out of the default writable roots
	// under WorkspaceWrite.
	ExcludeSlashTmp bool `json:"exclude_slash_tmp,omitempty" yaml:"exclude_slash_tmp,omitempty"`

	// ExcludeTmpdirEnv leaves $TMPDIR out of the default writable
	// roots under WorkspaceWrite.
	ExcludeTmpdirEnv bool `json:"exclude_tmpdir_env,omitempty" yaml:"exclude_tmpdir_env,omitempty"`
}

// ReadOnlyPolicy returns the default, most restrictive policy.
func ReadOnlyPolicy() Policy {
	return Policy{Mode: ReadOnly}
}

// WorkspaceWritePolicy returns a workspace-write policy with the
// given extra writable roots.
func WorkspaceWritePolicy(roots ...string) Policy {
	return Policy{Mode: WorkspaceWrite, WritableRoots: roots}
}

// FullAccessPolicy returns the unconfined policy.
func FullAccessPolicy() Policy {
	return Policy{Mode: DangerFullAccess}
}

// Confined reports whether the policy restricts the process at all.
func (p Policy) Confined() bool {
	return p.Mode != DangerFullAccess
}

// writableRoots resolves the full set of writable directories for a
// WorkspaceWrite sandbox rooted at cwd: the working directory, the
// scratch areas unless excluded, and the policy's explicit roots.
// Paths are made absolute, cleaned, deduplicated, and sorted so the
// resulting mount plan is deterministic.
func (p Policy) writableRoots(cwd string) []string {
	candidates := []string{cwd}
	if !p.ExcludeSlashTmp {
		candidates = append(candidates, "/tmp")
	}
	if !p.ExcludeTmpdirEnv {
		if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
			candidates = append(candidates, tmpdir)
		}
	}
	candidates = append(candidates, p.WritableRoots...)

	seen := make(map[string]bool, len(candidates))
	var roots []string
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(cwd, candidate)
		}
		candidate = filepath.Clean(candidate)
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		roots = append(roots, candidate)
	}
	sort.Strings(roots)
	return roots
}
