// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/warden/execpolicy"
)

// requireSandbox skips tests that need a working confinement
// primitive on the host.
func requireSandbox(t *testing.T) {
	t.Helper()
	if err := Available(); err != nil {
		t.Skipf("skipping: %v", err)
	}
}

func waitWithTimeout(t *testing.T, process *Process) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return process.Wait(ctx)
}

func TestSpawnFullAccessCapturesOutput(t *testing.T) {
	t.Parallel()
	process, err := Spawn(context.Background(),
		execpolicy.Call("echo", "hello"), FullAccessPolicy(),
		Options{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	code, err := waitWithTimeout(t, process)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := string(process.Output()); !strings.Contains(got, "hello") {
		t.Errorf("output = %q, want to contain hello", got)
	}
}

func TestSpawnStdin(t *testing.T) {
	t.Parallel()
	process, err := Spawn(context.Background(),
		execpolicy.Call("cat"), FullAccessPolicy(),
		Options{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := process.WriteStdin([]byte("echoed back\n")); err != nil {
		t.Fatalf("WriteStdin: %v", err)
	}
	if err := process.CloseStdin(); err != nil {
		t.Fatalf("CloseStdin: %v", err)
	}
	if _, err := waitWithTimeout(t, process); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := string(process.Output()); !strings.Contains(got, "echoed back") {
		t.Errorf("output = %q", got)
	}
}

func TestSpawnKillClosesDone(t *testing.T) {
	t.Parallel()
	process, err := Spawn(context.Background(),
		execpolicy.Call("sleep", "600"), FullAccessPolicy(),
		Options{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := process.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case <-process.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("Done not closed after Kill")
	}
}

func TestSpawnReadOnlyDeniesWrite(t *testing.T) {
	t.Parallel()
	requireSandbox(t)

	cwd := t.TempDir()
	process, err := Spawn(context.Background(),
		execpolicy.Call("sh", "-c", "echo started; touch blocked.txt"),
		ReadOnlyPolicy(), Options{Cwd: cwd})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	code, err := waitWithTimeout(t, process)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Wait = %d, %v; want DeniedError", code, err)
	}
	// Output captured before the denial travels with the error.
	if !strings.Contains(denied.PartialOutput, "started") {
		t.Errorf("PartialOutput = %q, want to contain pre-denial output", denied.PartialOutput)
	}
	if _, err := os.Stat(filepath.Join(cwd, "blocked.txt")); !os.IsNotExist(err) {
		t.Error("read-only sandbox let the file be created")
	}
}

func TestSpawnWorkspaceWriteAllowsWorkspace(t *testing.T) {
	t.Parallel()
	requireSandbox(t)

	cwd := t.TempDir()
	policy := Policy{Mode: WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnv: true}
	process, err := Spawn(context.Background(),
		execpolicy.Call("sh", "-c", "echo data > allowed.txt"),
		policy, Options{Cwd: cwd})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	code, err := waitWithTimeout(t, process)
	if err != nil {
		t.Fatalf("Wait: %v (output %q)", err, process.Output())
	}
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, process.Output())
	}
	if _, err := os.Stat(filepath.Join(cwd, "allowed.txt")); err != nil {
		t.Errorf("workspace file not created: %v", err)
	}
}

func TestSpawnWorkspaceWriteDeniesOutside(t *testing.T) {
	t.Parallel()
	requireSandbox(t)

	outside := t.TempDir()
	cwd := t.TempDir()
	policy := Policy{Mode: WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnv: true}
	process, err := Spawn(context.Background(),
		execpolicy.Call("sh", "-c", "touch "+filepath.Join(outside, "escape.txt")),
		policy, Options{Cwd: cwd})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	_, err = waitWithTimeout(t, process)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Wait err = %v, want DeniedError", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "escape.txt")); !os.IsNotExist(err) {
		t.Error("write outside the writable roots succeeded")
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	t.Parallel()
	if _, err := Spawn(context.Background(), execpolicy.ExecCall{}, FullAccessPolicy(), Options{}); err == nil {
		t.Error("Spawn accepted an empty command")
	}
}

func TestDetectDenial(t *testing.T) {
	t.Parallel()
	if _, denied := detectDenial(0, "Read-only file system"); denied {
		t.Error("exit code 0 reported as denial")
	}
	if _, denied := detectDenial(1, "ordinary failure"); denied {
		t.Error("unrelated failure reported as denial")
	}
	marker, denied := detectDenial(1, "touch: cannot touch 'x': Read-only file system")
	if !denied || marker != "Read-only file system" {
		t.Errorf("detectDenial = %q, %v", marker, denied)
	}
}
