// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// warden-rollout inspects and manages recorded conversations.
//
// Usage:
//
//	warden-rollout list [flags]
//	warden-rollout show <conversation-id>
//	warden-rollout archive [flags] <conversation-id>
//	warden-rollout fork <conversation-id> <events>
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/warden/lib/config"
	"github.com/bureau-foundation/warden/lib/version"
	"github.com/bureau-foundation/warden/rollout"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list":
		err = listCmd(args)
	case "show":
		err = showCmd(args)
	case "archive":
		err = archiveCmd(args)
	case "fork":
		err = forkCmd(args)
	case "version", "--version", "-v":
		if len(args) > 0 && args[0] == "--full" {
			fmt.Printf("warden-rollout %s\n", version.Full())
		} else {
			fmt.Printf("warden-rollout %s\n", version.Info())
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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`warden-rollout - Inspect and manage recorded conversations

USAGE
    warden-rollout <command> [flags] [args...]

COMMANDS
    list      List recorded conversations, newest first
    show      Print a conversation's events as JSON lines
    archive   Move a finished conversation into the archive
    fork      Start a new conversation from a prefix of an old one
    version   Show version (--full adds toolchain and platform)

EXAMPLES
    warden-rollout list --originator=warden-cli --active
    warden-rollout show 0195b6f2-1c7e-7a31-b5e2-4f8a9d3c6e01
    warden-rollout archive --compress 0195b6f2-1c7e-7a31-b5e2-4f8a9d3c6e01
    warden-rollout fork 0195b6f2-1c7e-7a31-b5e2-4f8a9d3c6e01 12

ENVIRONMENT
    WARDEN_CONFIG   Path to warden.yaml (or use --config)
`)
}

// rolloutDir resolves the rollout store root from configuration.
func rolloutDir(configPath string) (string, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return "", err
		}
		return cfg.Rollout.Dir, nil
	}
	if os.Getenv("WARDEN_CONFIG") != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.Rollout.Dir, nil
	}
	return config.Default().Rollout.Dir, nil
}

func listCmd(args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	originator := fs.String("originator", "", "Only conversations started by this originator")
	active := fs.Bool("active", false, "Skip the archive")
	after := fs.String("after", "", "Only conversations started after this RFC 3339 time")
	before := fs.String("before", "", "Only conversations started before this RFC 3339 time")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := rollout.Filter{Originator: *originator, ActiveOnly: *active}
	var err error
	if *after != "" {
		if filter.After, err = time.Parse(time.RFC3339, *after); err != nil {
			return fmt.Errorf("parsing --after: %w", err)
		}
	}
	if *before != "" {
		if filter.Before, err = time.Parse(time.RFC3339, *before); err != nil {
			return fmt.Errorf("parsing --before: %w", err)
		}
	}

	root, err := rolloutDir(*configPath)
	if err != nil {
		return err
	}
	sessions, err := rollout.List(root, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tORIGINATOR\tCWD")
	for _, meta := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			meta.ID, meta.Timestamp.Format(time.RFC3339), meta.Originator, meta.Cwd)
	}
	return w.Flush()
}

func showCmd(args []string) error {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: warden-rollout show <conversation-id>")
	}

	root, err := rolloutDir(*configPath)
	if err != nil {
		return err
	}
	path, err := rollout.Find(root, rollout.ConversationID(fs.Arg(0)))
	if err != nil {
		return err
	}
	meta, events, err := rollout.ReadFile(path)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(meta); err != nil {
		return err
	}
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func archiveCmd(args []string) error {
	fs := pflag.NewFlagSet("archive", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	compress := fs.Bool("compress", false, "Compress the archived file with zstd")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: warden-rollout archive [--compress] <conversation-id>")
	}

	root, err := rolloutDir(*configPath)
	if err != nil {
		return err
	}
	dest, err := rollout.Archive(root, rollout.ConversationID(fs.Arg(0)), *compress)
	if err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

func forkCmd(args []string) error {
	fs := pflag.NewFlagSet("fork", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to warden.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: warden-rollout fork <conversation-id> <events>")
	}
	count, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("parsing event count %q: %w", fs.Arg(1), err)
	}

	root, err := rolloutDir(*configPath)
	if err != nil {
		return err
	}
	recorder, err := rollout.Fork(root, rollout.ConversationID(fs.Arg(0)), count, rollout.Options{})
	if err != nil {
		return err
	}
	defer recorder.Close()
	fmt.Printf("%s\t%s\n", recorder.ID(), recorder.Path())
	return nil
}
