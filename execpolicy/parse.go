// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// RuleFileExtension is the extension rule files must carry to be
// loaded from a rules directory.
const RuleFileExtension = ".rules"

// ruleFile is the on-disk document shape. Files are JSONC: JSON
// extended with // comments, /* block comments */, and trailing
// commas, so operators can document why a pattern exists next to the
// pattern itself.
type ruleFile struct {
	Rules []Rule `json:"rules"`
}

// RuleError reports a malformed rule file. Load-time only; evaluation
// never fails.
type RuleError struct {
	File string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule file %s: %v", e.File, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Parse parses one rule file's contents. name is used in errors.
func Parse(name string, data []byte) ([]Rule, error) {
	var file ruleFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, &RuleError{File: name, Err: err}
	}
	for i := range file.Rules {
		if err := file.Rules[i].checkStructure(); err != nil {
			return nil, &RuleError{File: name, Err: err}
		}
	}
	return file.Rules, nil
}

// LoadDir loads every *.rules file in dir (lexical order, so file
// naming controls rule priority) and builds a validated policy. A
// missing directory yields the empty policy: with no rules everything
// prompts, which is the fail-closed default. Any malformed file or
// failing validation example aborts the load.
func LoadDir(dir string) (*Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != RuleFileExtension {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	var rules []Rule
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule file %s: %w", path, err)
		}
		parsed, err := Parse(path, data)
		if err != nil {
			return nil, err
		}
		rules = append(rules, parsed...)
	}
	return New(rules)
}

// hasRuleFiles reports whether dir holds at least one rule file. A
// missing directory has none.
func hasRuleFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == RuleFileExtension {
			return true, nil
		}
	}
	return false, nil
}

// LoadDirOrDefault loads dir like LoadDir, except that a directory
// holding no rule files, or no directory at all, yields the built-in
// default policy with its curated examples replayed rather than the
// empty everything-prompts policy. Shipping any rule file, even one
// with an empty rules list, opts out of the defaults.
func LoadDirOrDefault(dir string) (*Policy, error) {
	ok, err := hasRuleFiles(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultPolicy()
	}
	return LoadDir(dir)
}
