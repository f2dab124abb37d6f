// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"reflect"
	"testing"
)

func TestParseMode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want Mode
	}{
		{"read-only", ReadOnly},
		{"workspace-write", WorkspaceWrite},
		{"danger-full-access", DangerFullAccess},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tc.in)
		}
	}
	if _, err := ParseMode("full-access"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}

func TestZeroPolicyIsReadOnly(t *testing.T) {
	t.Parallel()
	var policy Policy
	if policy.Mode != ReadOnly {
		t.Errorf("zero policy mode = %v, want ReadOnly", policy.Mode)
	}
	if !policy.Confined() {
		t.Error("zero policy is not confined")
	}
	if FullAccessPolicy().Confined() {
		t.Error("DangerFullAccess reports confined")
	}
}

func TestWritableRootsDefaults(t *testing.T) {
	t.Setenv("TMPDIR", "/scratch")
	policy := WorkspaceWritePolicy("/data/cache")
	got := policy.writableRoots("/work/repo")
	want := []string{"/data/cache", "/scratch", "/tmp", "/work/repo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("writableRoots = %v, want %v", got, want)
	}
}

func TestWritableRootsExclusions(t *testing.T) {
	t.Setenv("TMPDIR", "/scratch")
	policy := Policy{
		Mode:             WorkspaceWrite,
		ExcludeSlashTmp:  true,
		ExcludeTmpdirEnv: true,
	}
	got := policy.writableRoots("/work/repo")
	want := []string{"/work/repo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("writableRoots = %v, want %v", got, want)
	}
}

func TestWritableRootsRelativeAndDuplicate(t *testing.T) {
	t.Setenv("TMPDIR", "")
	policy := Policy{
		Mode:            WorkspaceWrite,
		WritableRoots:   []string{"build", "/work/repo", "/work/repo/build"},
		ExcludeSlashTmp: true,
	}
	got := policy.writableRoots("/work/repo")
	want := []string{"/work/repo", "/work/repo/build"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("writableRoots = %v, want %v", got, want)
	}
}
