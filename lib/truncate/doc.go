// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package truncate bounds command output to a byte or token budget
// without ever splitting a multi-byte UTF-8 sequence.
//
// Two directions are provided: [Head] keeps the beginning of the text
// (what happened first), [Tail] keeps the end (what happened most
// recently). [HeadTail] splits the budget across both ends with an
// elision marker in the middle, which is the shape handed back to a
// token-limited model. Token budgets are approximate — [ApproxTokens]
// uses the four-bytes-per-token rule of thumb, which overestimates for
// dense code and underestimates for prose, but errs on the side of
// fitting within the model's context.
package truncate
