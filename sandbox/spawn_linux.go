// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Available reports whether confined spawning is possible on this
// host.
func Available() error {
	if _, err := bwrapPath(); err != nil {
		return fmt.Errorf("sandbox unavailable: %w", err)
	}
	return nil
}

// confinedCommand builds the bwrap-wrapped exec.Cmd for a confining
// policy.
func confinedCommand(ctx context.Context, policy Policy, cwd string, env map[string]string, command []string) (*exec.Cmd, error) {
	bwrap, err := bwrapPath()
	if err != nil {
		return nil, fmt.Errorf("sandbox unavailable: %w", err)
	}
	args, err := bwrapArguments(policy, cwd, env, command)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bwrap, args...)
	// The bwrap process itself gets a minimal environment. The child's
	// environment comes from --clearenv and --setenv; leaving the
	// parent's environment on the bwrap process would expose it in
	// /proc/<pid>/environ to anything that can read proc.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"TERM=" + os.Getenv("TERM"),
	}
	return cmd, nil
}
