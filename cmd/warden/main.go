// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/warden/lib/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("WARDEN_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args, logger)
	case "check":
		err = checkCmd(args)
	case "allow":
		err = allowCmd(args)
	case "version", "--version", "-v":
		if len(args) > 0 && args[0] == "--full" {
			fmt.Printf("warden %s\n", version.Full())
		} else {
			fmt.Printf("warden %s\n", version.Info())
		}
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`warden - Gate, confine, and record agent command execution

USAGE
    warden <command> [flags] [-- <args>...]

COMMANDS
    run       Gate a command through policy and run it in the sandbox
    check     Evaluate a command against policy without running it
    allow     Durably approve an argv prefix in the rules directory
    version   Show version (--full adds toolchain and platform)

EXAMPLES
    # Run a command read-only, prompting on unmatched commands
    warden run -- git status

    # Allow writes under the current worktree
    warden run --sandbox=workspace-write -- make test

    # See what policy would decide, and which rules matched
    warden check --verbose -- git push --force

    # Remember "go vet" as approved
    warden allow -- go vet

ENVIRONMENT
    WARDEN_CONFIG   Path to warden.yaml (or use --config)
    WARDEN_DEBUG    Enable debug logging
`)
}

// exitError carries a child's exit status to os.Exit without an
// extra error line on stderr.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e exitError) ExitCode() int { return e.code }
