// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// bwrapPath locates the bubblewrap executable.
func bwrapPath() (string, error) {
	paths := []string{
		"/usr/bin/bwrap",
		"/usr/local/bin/bwrap",
		"/bin/bwrap",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("bwrap not found in standard locations")
}

// bwrapArguments builds the full bubblewrap argument list that
// enforces the policy around command. bwrap assembles the mount and
// namespace plan before exec'ing the target, so confinement is
// irrevocably established before the command's first instruction.
func bwrapArguments(policy Policy, cwd string, environment map[string]string, command []string) ([]string, error) {
	if !policy.Confined() {
		return nil, fmt.Errorf("policy %s does not use bwrap", policy.Mode)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	if !filepath.IsAbs(cwd) {
		return nil, fmt.Errorf("working directory %q is not absolute", cwd)
	}

	args := []string{
		"--die-with-parent",
		"--unshare-pid",
		"--unshare-ipc",
		"--unshare-uts",
	}
	networkAllowed := policy.Mode == WorkspaceWrite && policy.NetworkAllowed
	if !networkAllowed {
		args = append(args, "--unshare-net")
	}

	// The whole filesystem is visible read-only; writable roots are
	// rebound read-write on top.
	args = append(args, "--ro-bind", "/", "/")

	if policy.Mode == WorkspaceWrite {
		for _, root := range policy.writableRoots(cwd) {
			if _, err := os.Stat(root); os.IsNotExist(err) {
				continue
			}
			args = append(args, "--bind", root, root)

			// The version-control directory of a writable root stays
			// read-only so a confined command cannot rewrite history
			// or hooks even where it can edit the checkout.
			gitDir := filepath.Join(root, ".git")
			if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
				args = append(args, "--ro-bind", gitDir, gitDir)
			}
		}
	}

	// Fresh /proc and /dev rather than the host's.
	args = append(args, "--proc", "/proc", "--dev", "/dev")
	args = append(args, "--chdir", cwd)

	// The child sees only the explicit environment.
	args = append(args, "--clearenv")
	keys := make([]string, 0, len(environment))
	for key := range environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--setenv", key, environment[key])
	}

	args = append(args, "--")
	args = append(args, command...)
	return args, nil
}
