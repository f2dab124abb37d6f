// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestBwrapArgumentsReadOnly(t *testing.T) {
	t.Parallel()
	args, err := bwrapArguments(ReadOnlyPolicy(), "/work", nil, []string{"ls", "-la"})
	if err != nil {
		t.Fatalf("bwrapArguments: %v", err)
	}

	if !slices.Contains(args, "--unshare-net") {
		t.Error("read-only sandbox does not unshare the network namespace")
	}
	if !hasArgPair(args, "--ro-bind", "/") {
		t.Error("missing read-only root bind")
	}
	if slices.Contains(args, "--bind") {
		t.Errorf("read-only sandbox has a writable bind: %v", args)
	}
	if !slices.Contains(args, "--clearenv") {
		t.Error("environment is not cleared")
	}
	if !slices.Contains(args, "--die-with-parent") {
		t.Error("missing --die-with-parent")
	}

	sep := slices.Index(args, "--")
	if sep < 0 {
		t.Fatal("missing command separator")
	}
	if got := args[sep+1:]; !slices.Equal(got, []string{"ls", "-la"}) {
		t.Errorf("command after separator = %v", got)
	}
}

func TestBwrapArgumentsWorkspaceWrite(t *testing.T) {
	t.Parallel()
	cwd := t.TempDir()
	policy := Policy{Mode: WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnv: true}
	args, err := bwrapArguments(policy, cwd, nil, []string{"touch", "out.txt"})
	if err != nil {
		t.Fatalf("bwrapArguments: %v", err)
	}

	if !hasArgPair(args, "--bind", cwd) {
		t.Errorf("working directory %s is not bound writable: %v", cwd, args)
	}
	if !hasArgPair(args, "--chdir", cwd) {
		t.Error("missing --chdir")
	}
	if !slices.Contains(args, "--unshare-net") {
		t.Error("network not denied by default under workspace-write")
	}
}

func TestBwrapArgumentsNetworkAllowed(t *testing.T) {
	t.Parallel()
	cwd := t.TempDir()
	policy := Policy{
		Mode:             WorkspaceWrite,
		NetworkAllowed:   true,
		ExcludeSlashTmp:  true,
		ExcludeTmpdirEnv: true,
	}
	args, err := bwrapArguments(policy, cwd, nil, []string{"curl", "https://example.com"})
	if err != nil {
		t.Fatalf("bwrapArguments: %v", err)
	}
	if slices.Contains(args, "--unshare-net") {
		t.Error("network unshared despite NetworkAllowed")
	}
}

func TestBwrapArgumentsGitStaysReadOnly(t *testing.T) {
	t.Parallel()
	cwd := t.TempDir()
	gitDir := filepath.Join(cwd, ".git")
	if err := os.Mkdir(gitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	policy := Policy{Mode: WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnv: true}
	args, err := bwrapArguments(policy, cwd, nil, []string{"sh"})
	if err != nil {
		t.Fatalf("bwrapArguments: %v", err)
	}
	if !hasArgPair(args, "--ro-bind", gitDir) {
		t.Errorf(".git of writable root not rebound read-only: %v", args)
	}
	// The read-only .git bind must come after the writable root bind
	// so it wins.
	bindIndex := slices.Index(args, "--bind")
	roGit := -1
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--ro-bind" && args[i+1] == gitDir {
			roGit = i
		}
	}
	if roGit < bindIndex {
		t.Errorf(".git ro-bind at %d precedes writable bind at %d", roGit, bindIndex)
	}
}

func TestBwrapArgumentsEnvironmentSorted(t *testing.T) {
	t.Parallel()
	env := map[string]string{"ZED": "1", "ALPHA": "2", "MID": "3"}
	args, err := bwrapArguments(ReadOnlyPolicy(), "/work", env, []string{"env"})
	if err != nil {
		t.Fatalf("bwrapArguments: %v", err)
	}
	var keys []string
	for i := 0; i+2 < len(args); i++ {
		if args[i] == "--setenv" {
			keys = append(keys, args[i+1])
		}
	}
	if !slices.Equal(keys, []string{"ALPHA", "MID", "ZED"}) {
		t.Errorf("setenv key order = %v, want sorted", keys)
	}
}

func TestBwrapArgumentsRejectsBadInput(t *testing.T) {
	t.Parallel()
	if _, err := bwrapArguments(FullAccessPolicy(), "/work", nil, []string{"ls"}); err == nil {
		t.Error("accepted an unconfined policy")
	}
	if _, err := bwrapArguments(ReadOnlyPolicy(), "/work", nil, nil); err == nil {
		t.Error("accepted an empty command")
	}
	if _, err := bwrapArguments(ReadOnlyPolicy(), "relative/dir", nil, []string{"ls"}); err == nil {
		t.Error("accepted a relative working directory")
	}
}
