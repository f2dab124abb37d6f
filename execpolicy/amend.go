// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// AmendmentFile is the rule file that accumulates prefixes a human
// approved and asked to remember.
const AmendmentFile = "approved" + RuleFileExtension

// allowPrefixRuleName derives a stable rule name from a prefix so
// repeated approvals of the same command are idempotent.
func allowPrefixRuleName(prefix []string) string {
	return "approved/" + strings.Join(prefix, "-")
}

// AppendAllowPrefix durably records an approved argv prefix as an
// allow rule in the rules directory's amendment file, then applies
// the same rule to the live policy. The file is rewritten atomically
// (temp file + rename) so a crash cannot leave a half-written
// ruleset behind.
func AppendAllowPrefix(rulesDir string, policy *Policy, prefix []string) error {
	if len(prefix) == 0 {
		return fmt.Errorf("empty prefix")
	}

	path := filepath.Join(rulesDir, AmendmentFile)
	var file ruleFile
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First amendment; start a fresh file.
	default:
		return fmt.Errorf("reading %s: %w", path, err)
	}

	name := allowPrefixRuleName(prefix)
	for i := range file.Rules {
		if file.Rules[i].Name == name {
			return policy.AddAllowPrefix(prefix)
		}
	}
	file.Rules = append(file.Rules, Rule{
		Name:     name,
		Prefix:   append([]string(nil), prefix...),
		Decision: Allow,
	})

	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		return fmt.Errorf("creating rules directory: %w", err)
	}
	encoded, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return policy.AddAllowPrefix(prefix)
}
