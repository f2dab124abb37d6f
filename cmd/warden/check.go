// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/warden/execpolicy"
)

// checkCmd implements "check": evaluate a command against the loaded
// ruleset without running anything. Exit status encodes the decision:
// 0 allow, 3 prompt, 4 forbidden.
func checkCmd(args []string) error {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	verbose := fs.Bool("verbose", false, "Show matched rules and unanalyzable sub-commands")
	fs.Usage = func() {
		fmt.Print(`warden check - Evaluate a command against policy without running it

USAGE
    warden check [flags] -- <command> [args...]

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
	policy, err := execpolicy.LoadDirOrDefault(cfg.Paths.Rules)
	if err != nil {
		return fmt.Errorf("loading policy rules: %w", err)
	}

	evaluation := policy.EvaluateDetailed(call)
	fmt.Printf("%s\n", evaluation.Decision)
	if *verbose {
		for _, match := range evaluation.Matches {
			fmt.Printf("  rule %s: %s\n", match.Rule, match.Decision)
		}
		for _, argv := range evaluation.Unmatched {
			fmt.Printf("  unmatched: %s\n", strings.Join(argv, " "))
		}
	}

	switch evaluation.Decision {
	case execpolicy.Allow:
		return nil
	case execpolicy.Forbidden:
		return exitError{code: 4}
	default:
		return exitError{code: 3}
	}
}

// allowCmd implements "allow": durably record an approved argv
// prefix in the rules directory's amendment file.
func allowCmd(args []string) error {
	fs := pflag.NewFlagSet("allow", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	fs.Usage = func() {
		fmt.Print(`warden allow - Durably approve an argv prefix

USAGE
    warden allow [flags] -- <prefix>...

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	prefix := fs.Args()
	if len(prefix) == 0 {
		return fmt.Errorf("prefix is required after --")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	// An amendment into an empty rules directory would opt the
	// deployment out of the built-in defaults; seed them first so
	// the approval extends the defaults instead.
	if err := execpolicy.SeedDefaultRules(cfg.Paths.Rules); err != nil {
		return err
	}
	policy, err := execpolicy.LoadDir(cfg.Paths.Rules)
	if err != nil {
		return fmt.Errorf("loading policy rules: %w", err)
	}
	if err := execpolicy.AppendAllowPrefix(cfg.Paths.Rules, policy, prefix); err != nil {
		return err
	}
	fmt.Printf("approved: %s\n", strings.Join(prefix, " "))
	return nil
}
