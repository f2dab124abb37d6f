// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/lib/config"
	"github.com/bureau-foundation/warden/rollout"
	"github.com/bureau-foundation/warden/sandbox"
	"github.com/bureau-foundation/warden/turn"
)

// loadConfig resolves configuration: an explicit --config path wins,
// then WARDEN_CONFIG, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("WARDEN_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// runCmd implements the "run" command: gate one command through
// policy, run it under the sandbox, and record the turn.
func runCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	sandboxMode := fs.String("sandbox", "", "Sandbox mode: read-only, workspace-write, or danger-full-access")
	approval := fs.String("approval", "", "Approval policy: never, on-request, on-failure, or always")
	writableRoots := fs.StringArray("writable-root", nil, "Extra writable root (repeatable, implies workspace-write semantics)")
	allowNetwork := fs.Bool("allow-network", false, "Allow network egress under workspace-write")
	cwd := fs.String("cwd", "", "Working directory for the command (default: current directory)")
	fs.Usage = func() {
		fmt.Print(`warden run - Gate a command through policy and run it in the sandbox

USAGE
    warden run [flags] -- <command> [args...]

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Args()
	call, ok := execpolicy.CallFromArgv(command)
	if !ok {
		return fmt.Errorf("command is required after --")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cfg, fs, *sandboxMode, *approval, *writableRoots, *allowNetwork); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	policy, err := execpolicy.LoadDirOrDefault(cfg.Paths.Rules)
	if err != nil {
		return fmt.Errorf("loading policy rules: %w", err)
	}

	if *cwd == "" {
		*cwd, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	recorder, err := rollout.New(cfg.Rollout.Dir, rollout.SessionMeta{
		Cwd:               *cwd,
		Originator:        "warden-cli",
		PolicyFingerprint: policy.Fingerprint(),
	}, rollout.Options{})
	if err != nil {
		return fmt.Errorf("opening rollout: %w", err)
	}
	defer recorder.Close()

	approvalPolicy, err := cfg.ApprovalPolicy()
	if err != nil {
		return err
	}

	coordinator, err := turn.NewCoordinator(turn.Config{
		Policy:          policy,
		Approval:        approvalPolicy,
		Ask:             terminalPrompt(),
		Sandbox:         cfg.Sandbox,
		Recorder:        recorder,
		Cwd:             *cwd,
		MaxOutputTokens: cfg.Session.MaxOutputTokens,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	// SIGINT cancels the turn; the result is reported only once the
	// child's exit is confirmed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	active, err := coordinator.StartToolCall(ctx, call)
	if err != nil {
		return err
	}
	result, err := active.Wait(context.Background())
	if err != nil {
		return err
	}
	if err := recorder.Append(rollout.Event{Type: rollout.TypeSessionEnd}); err != nil {
		logger.Warn("recording session end", "error", err)
	}

	if result.Output != "" {
		fmt.Print(result.Output)
	}
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "warden: output truncated")
	}
	if result.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "warden: %s\n", result.ErrorMessage)
	}

	switch {
	case result.Status == turn.Failed:
		return fmt.Errorf("turn failed: %s", result.ErrorMessage)
	case result.Status == turn.Cancelled:
		return exitError{code: 130}
	case result.ExitStatus != nil && *result.ExitStatus != 0:
		return exitError{code: *result.ExitStatus}
	case result.ErrorMessage != "":
		return exitError{code: 1}
	}
	return nil
}

// applyFlagOverrides layers command-line flags over the loaded
// configuration. Flags that were not set leave the config untouched.
func applyFlagOverrides(cfg *config.Config, fs *pflag.FlagSet, mode, approval string, roots []string, allowNetwork bool) error {
	if mode != "" {
		parsed, err := sandbox.ParseMode(mode)
		if err != nil {
			return err
		}
		cfg.Sandbox.Mode = parsed
	}
	if approval != "" {
		cfg.Approval = approval
	}
	if len(roots) > 0 {
		cfg.Sandbox.WritableRoots = append(cfg.Sandbox.WritableRoots, roots...)
	}
	if fs.Changed("allow-network") {
		cfg.Sandbox.NetworkAllowed = allowNetwork
	}
	return nil
}
