// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sandbox

import (
	"context"
	"os/exec"
)

// Available reports whether confined spawning is possible on this
// host. Only Linux has a supported confinement primitive.
func Available() error {
	return ErrNotSupported
}

func confinedCommand(ctx context.Context, policy Policy, cwd string, env map[string]string, command []string) (*exec.Cmd, error) {
	return nil, ErrNotSupported
}
