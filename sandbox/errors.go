// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned by Spawn on platforms without a
// supported confinement primitive. The boundary degrades to an
// explicit error, never to silently running unconfined.
var ErrNotSupported = errors.New("sandbox: no supported confinement primitive on this platform")

// DeniedError reports that the sandbox blocked a write or network
// attempt. Denial is routine, expected behavior under a confining
// policy, not a bug; callers typically surface it to the approval
// layer, which may escalate to an unconfined retry.
type DeniedError struct {
	// Message describes what was blocked, derived from the process's
	// stderr and exit status.
	Message string

	// PartialOutput is the combined output captured before the
	// denial. It is often the most useful diagnostic the caller has,
	// so it is carried in the error rather than discarded.
	PartialOutput string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("sandbox denied: %s", e.Message)
}

// denialMarkers are stderr substrings that indicate the sandbox
// blocked a write or network attempt, as opposed to the command
// failing on its own terms.
var denialMarkers = []string{
	"Read-only file system",
	"Permission denied",
	"Operation not permitted",
	"Network is unreachable",
	"Could not resolve host",
	"Temporary failure in name resolution",
	"Connection refused",
}

// detectDenial inspects a confined process's exit code and captured
// output and returns the matched denial marker, if any. Exit code 0
// is never a denial.
func detectDenial(exitCode int, output string) (string, bool) {
	if exitCode == 0 {
		return "", false
	}
	for _, marker := range denialMarkers {
		if strings.Contains(output, marker) {
			return marker, true
		}
	}
	return "", false
}
