// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bureau-foundation/warden/execpolicy"
)

// terminalPrompt returns an approval prompt bound to the controlling
// terminal, or nil when stdin is not a terminal. A nil prompt makes
// the run non-interactive: prompting commands are denied.
func terminalPrompt() execpolicy.PromptFunc {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, req execpolicy.PromptRequest) (bool, error) {
		fmt.Fprintf(os.Stderr, "warden: approve %q? (%s)\n", req.Call, req.Reason)
		if req.FailedOutput != "" {
			fmt.Fprintf(os.Stderr, "--- failed attempt output ---\n%s\n-----------------------------\n", req.FailedOutput)
		}
		fmt.Fprint(os.Stderr, "[y/N] ")

		type answer struct {
			line string
			err  error
		}
		ch := make(chan answer, 1)
		go func() {
			line, err := reader.ReadString('\n')
			ch <- answer{line: line, err: err}
		}()
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return false, ctx.Err()
		case a := <-ch:
			if a.err != nil {
				return false, a.err
			}
			line := strings.ToLower(strings.TrimSpace(a.line))
			return line == "y" || line == "yes", nil
		}
	}
}
