// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/sandbox"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sandbox.Mode != sandbox.ReadOnly {
		t.Errorf("default sandbox mode = %s, want read-only", cfg.Sandbox.Mode)
	}
	if cfg.Approval != "on-request" {
		t.Errorf("default approval = %q, want on-request", cfg.Approval)
	}
	if cfg.Paths.Rules != filepath.Join(cfg.Paths.Root, "rules") {
		t.Errorf("rules dir %q not under root %q", cfg.Paths.Rules, cfg.Paths.Root)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadRequiresWardenConfig(t *testing.T) {
	t.Setenv("WARDEN_CONFIG", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without WARDEN_CONFIG")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "approval: never\n")
	t.Setenv("WARDEN_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval != "never" {
		t.Errorf("approval = %q, want never", cfg.Approval)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  root: /srv/warden
approval: on-failure
sandbox:
  mode: workspace-write
  writable_roots:
    - /srv/warden/work
  network_allowed: true
session:
  max_sessions: 4
  idle_timeout: 2m
rollout:
  dir: /srv/warden/history
  compress_archived: true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Root != "/srv/warden" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
	if cfg.Sandbox.Mode != sandbox.WorkspaceWrite {
		t.Errorf("mode = %s", cfg.Sandbox.Mode)
	}
	if !cfg.Sandbox.NetworkAllowed {
		t.Error("network_allowed not applied")
	}
	if got := cfg.Sandbox.WritableRoots; len(got) != 1 || got[0] != "/srv/warden/work" {
		t.Errorf("writable_roots = %v", got)
	}
	if cfg.Session.MaxSessions != 4 {
		t.Errorf("max_sessions = %d", cfg.Session.MaxSessions)
	}
	if cfg.Session.IdleTimeout.Std() != 2*time.Minute {
		t.Errorf("idle_timeout = %s", cfg.Session.IdleTimeout.Std())
	}
	// Unset fields keep their defaults.
	if cfg.Session.MaxOutputTokens != Default().Session.MaxOutputTokens {
		t.Errorf("max_output_tokens = %d, want default", cfg.Session.MaxOutputTokens)
	}
	if cfg.Rollout.Dir != "/srv/warden/history" || !cfg.Rollout.CompressArchived {
		t.Errorf("rollout = %+v", cfg.Rollout)
	}

	policy, err := cfg.ApprovalPolicy()
	if err != nil {
		t.Fatalf("ApprovalPolicy: %v", err)
	}
	if policy != execpolicy.ApproveOnFailure {
		t.Errorf("approval policy = %s", policy)
	}
}

func TestVariableExpansion(t *testing.T) {
	path := writeConfig(t, `
paths:
  root: /data/warden
  rules: ${WARDEN_ROOT}/policy
sandbox:
  mode: workspace-write
  writable_roots:
    - ${WARDEN_ROOT}/scratch
rollout:
  dir: ${WARDEN_ROOT}/history
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Rules != "/data/warden/policy" {
		t.Errorf("rules = %q", cfg.Paths.Rules)
	}
	if cfg.Rollout.Dir != "/data/warden/history" {
		t.Errorf("rollout dir = %q", cfg.Rollout.Dir)
	}
	if got := cfg.Sandbox.WritableRoots[0]; got != "/data/warden/scratch" {
		t.Errorf("writable root = %q", got)
	}
}

func TestInvalidModeRejected(t *testing.T) {
	path := writeConfig(t, "sandbox:\n  mode: yolo\n")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "yolo") {
		t.Errorf("LoadFile = %v, want unknown mode error", err)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	path := writeConfig(t, "session:\n  idle_timeout: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile accepted an unparseable duration")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing root", func(c *Config) { c.Paths.Root = "" }, "paths.root"},
		{"missing rules", func(c *Config) { c.Paths.Rules = "" }, "paths.rules"},
		{"missing rollout dir", func(c *Config) { c.Rollout.Dir = "" }, "rollout.dir"},
		{"bad approval", func(c *Config) { c.Approval = "sometimes" }, "approval"},
		{"zero sessions", func(c *Config) { c.Session.MaxSessions = 0 }, "max_sessions"},
		{"zero idle", func(c *Config) { c.Session.IdleTimeout = 0 }, "idle_timeout"},
		{"zero yield", func(c *Config) { c.Session.Yield = 0 }, "yield"},
		{"zero tokens", func(c *Config) { c.Session.MaxOutputTokens = 0 }, "max_output_tokens"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "warden")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.Rules = filepath.Join(root, "rules")
	cfg.Rollout.Dir = filepath.Join(root, "history")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, dir := range []string{root, cfg.Paths.Rules, cfg.Rollout.Dir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
