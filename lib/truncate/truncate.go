// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package truncate

import (
	"fmt"
	"unicode/utf8"
)

// BytesPerToken is the approximation used to convert between byte and
// token budgets. Matches the heuristic used when sizing tool output
// for a model context.
const BytesPerToken = 4

// ApproxTokens estimates the token count of s.
func ApproxTokens(s string) int {
	return (len(s) + BytesPerToken - 1) / BytesPerToken
}

// Head returns a prefix of s that is at most budget bytes long, cut at
// a UTF-8 boundary. The second return value reports whether anything
// was dropped. A budget at or above len(s) returns s unchanged; a
// negative budget is treated as zero.
func Head(s string, budget int) (string, bool) {
	if budget < 0 {
		budget = 0
	}
	if len(s) <= budget {
		return s, false
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

// Tail returns a suffix of s that is at most budget bytes long, cut at
// a UTF-8 boundary. The second return value reports whether anything
// was dropped.
func Tail(s string, budget int) (string, bool) {
	if budget < 0 {
		budget = 0
	}
	if len(s) <= budget {
		return s, false
	}
	cut := len(s) - budget
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:], true
}

// HeadTail keeps the first and last portions of s within a total byte
// budget, joining them with a marker that names how many bytes were
// elided. The head receives half the budget, the tail the remainder.
// If s already fits, it is returned unchanged.
func HeadTail(s string, budget int) (string, bool) {
	if len(s) <= budget {
		return s, false
	}
	// Reserve room for the marker itself so the result stays near the
	// budget. The marker length varies with the elided byte count, so
	// this is deliberately approximate.
	const markerReserve = 48
	usable := budget - markerReserve
	if usable < 2 {
		out, _ := Head(s, budget)
		return out, true
	}
	head, _ := Head(s, usable/2)
	tail, _ := Tail(s, usable-len(head))
	elided := len(s) - len(head) - len(tail)
	return fmt.Sprintf("%s\n[... %d bytes elided ...]\n%s", head, elided, tail), true
}

// TokenHeadTail is HeadTail with the budget expressed in approximate
// tokens. A non-positive budget returns an empty string with
// truncation reported whenever s is non-empty.
func TokenHeadTail(s string, tokens int) (string, bool) {
	if tokens <= 0 {
		return "", s != ""
	}
	return HeadTail(s, tokens*BytesPerToken)
}
