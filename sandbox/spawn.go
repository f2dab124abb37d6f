// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/bureau-foundation/warden/execpolicy"
)

// Options configures a spawn.
type Options struct {
	// Cwd is the working directory for the command and the anchor for
	// the default writable roots. Defaults to the current directory.
	Cwd string

	// Env is the child's complete environment. Defaults to
	// DefaultEnvironment(). The parent's environment is never
	// inherited implicitly.
	Env map[string]string

	// RingCapacity bounds captured output. Defaults to
	// DefaultRingCapacity.
	RingCapacity int

	// Logger for spawn operations. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultEnvironment returns the baseline child environment:
// non-interactive, pager-free, color-free, carrying over only the
// variables a command-line tool needs to run at all.
func DefaultEnvironment() map[string]string {
	env := map[string]string{
		"NO_COLOR":  "1",
		"TERM":      "dumb",
		"PAGER":     "cat",
		"GIT_PAGER": "cat",
	}
	for _, key := range []string{"PATH", "HOME", "USER", "LANG", "TMPDIR"} {
		if value := os.Getenv(key); value != "" {
			env[key] = value
		}
	}
	if env["PATH"] == "" {
		env["PATH"] = "/usr/local/bin:/usr/bin:/bin"
	}
	return env
}

// Process is a handle to a spawned command. Output accumulates in a
// bounded ring; Done closes when the process exits.
type Process struct {
	cmd      *exec.Cmd
	ring     *Ring
	policy   Policy
	stdin    io.WriteCloser
	done     chan struct{}
	exitCode int
	waitErr  error
}

// Command builds the unstarted exec.Cmd that enforces policy around
// call: bwrap-wrapped for confining policies, direct for
// DangerFullAccess. Callers that need custom process plumbing (a
// PTY, say) start it themselves; everyone else uses Spawn.
func Command(ctx context.Context, call execpolicy.ExecCall, policy Policy, opts Options) (*exec.Cmd, error) {
	command := call.Argv()
	if len(command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cwd := opts.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cwd = wd
	}
	env := opts.Env
	if env == nil {
		env = DefaultEnvironment()
	}

	var cmd *exec.Cmd
	if policy.Confined() {
		confined, err := confinedCommand(ctx, policy, cwd, env, command)
		if err != nil {
			return nil, err
		}
		cmd = confined
	} else {
		cmd = exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Dir = cwd
		cmd.Env = flattenEnvironment(env)
	}
	setProcessGroup(cmd)
	return cmd, nil
}

// Spawn runs call under policy. Confinement is fully established
// before the target program executes. On platforms without a
// supported confinement primitive, confining policies return
// ErrNotSupported; DangerFullAccess runs everywhere.
func Spawn(ctx context.Context, call execpolicy.ExecCall, policy Policy, opts Options) (*Process, error) {
	cmd, err := Command(ctx, call, policy, opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ring := NewRing(opts.RingCapacity)
	cmd.Stdout = ring
	cmd.Stderr = ring

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	logger.Debug("spawning command",
		"command", call.Argv(),
		"mode", policy.Mode.String(),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", call, err)
	}

	process := &Process{
		cmd:    cmd,
		ring:   ring,
		policy: policy,
		stdin:  stdin,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		process.exitCode = cmd.ProcessState.ExitCode()
		if err != nil {
			if _, ok := err.(*exec.ExitError); !ok {
				process.waitErr = err
			}
		}
		close(process.done)
	}()
	return process, nil
}

// KillCommandGroup terminates a started command and its process
// group. For callers that run a Command themselves instead of using
// Spawn.
func KillCommandGroup(cmd *exec.Cmd) error {
	return killProcessGroup(cmd)
}

// flattenEnvironment converts an environment map to the KEY=VALUE
// slice form exec.Cmd expects.
func flattenEnvironment(env map[string]string) []string {
	flat := make([]string, 0, len(env))
	for key, value := range env {
		flat = append(flat, key+"="+value)
	}
	return flat
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Output returns a copy of the captured output so far, oldest first
// within the ring's capacity.
func (p *Process) Output() []byte {
	return p.ring.Bytes()
}

// OutputDropped reports whether early output was overwritten.
func (p *Process) OutputDropped() bool {
	return p.ring.Dropped()
}

// Notify returns a channel signaled when new output arrives.
func (p *Process) Notify() <-chan struct{} {
	return p.ring.Notify()
}

// Done returns a channel closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit code. Valid only after Done is closed.
func (p *Process) ExitCode() int {
	return p.exitCode
}

// WriteStdin writes to the process's standard input.
func (p *Process) WriteStdin(data []byte) error {
	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("writing stdin: %w", err)
	}
	return nil
}

// CloseStdin closes the process's standard input.
func (p *Process) CloseStdin() error {
	return p.stdin.Close()
}

// Wait blocks until the process exits or ctx is done. A non-zero
// exit whose output matches a denial marker under a confining policy
// is reported as a DeniedError with the partial output attached.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-p.done:
	}
	if p.waitErr != nil {
		return p.exitCode, fmt.Errorf("waiting for process: %w", p.waitErr)
	}
	if p.policy.Confined() {
		output := string(p.ring.Bytes())
		if marker, denied := detectDenial(p.exitCode, output); denied {
			return p.exitCode, &DeniedError{
				Message:       marker,
				PartialOutput: output,
			}
		}
	}
	return p.exitCode, nil
}

// Kill terminates the process and its process group.
func (p *Process) Kill() error {
	return killProcessGroup(p.cmd)
}
