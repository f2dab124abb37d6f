// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAllowPrefix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	policy := Empty()

	if err := AppendAllowPrefix(dir, policy, []string{"cargo", "check"}); err != nil {
		t.Fatalf("AppendAllowPrefix: %v", err)
	}
	if got := policy.Evaluate(Call("cargo", "check", "--workspace")); got != Allow {
		t.Errorf("live policy after amendment = %s, want allow", got)
	}

	// The amendment survives a reload from disk.
	reloaded, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if got := reloaded.Evaluate(Call("cargo", "check")); got != Allow {
		t.Errorf("reloaded policy = %s, want allow", got)
	}
}

func TestAppendAllowPrefixIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	policy := Empty()

	for i := 0; i < 3; i++ {
		if err := AppendAllowPrefix(dir, policy, []string{"go", "vet"}); err != nil {
			t.Fatalf("AppendAllowPrefix #%d: %v", i, err)
		}
	}

	reloaded, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if got := len(reloaded.Rules()); got != 1 {
		t.Errorf("rule count after repeated amendment = %d, want 1", got)
	}
}

func TestAppendAllowPrefixAccumulates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	policy := Empty()

	if err := AppendAllowPrefix(dir, policy, []string{"go", "vet"}); err != nil {
		t.Fatalf("AppendAllowPrefix: %v", err)
	}
	if err := AppendAllowPrefix(dir, policy, []string{"go", "doc"}); err != nil {
		t.Fatalf("AppendAllowPrefix: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, AmendmentFile))
	if err != nil {
		t.Fatalf("reading amendment file: %v", err)
	}
	rules, err := Parse(AmendmentFile, data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	if rules[0].Name != "approved/go-vet" || rules[1].Name != "approved/go-doc" {
		t.Errorf("rule names = %s, %s", rules[0].Name, rules[1].Name)
	}
}

func TestAppendAllowPrefixRejectsEmpty(t *testing.T) {
	t.Parallel()
	if err := AppendAllowPrefix(t.TempDir(), Empty(), nil); err == nil {
		t.Error("AppendAllowPrefix accepted an empty prefix")
	}
}
