// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package execpolicy

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// rulesDomainKey is the 32-byte key for BLAKE3 keyed hashing of
// rulesets. Domain separation keeps a ruleset fingerprint from ever
// colliding with a hash computed over the same bytes in another
// context. The bytes are the ASCII domain name, zero-padded, so the
// key is inspectable in hex dumps.
var rulesDomainKey = [32]byte{
	'w', 'a', 'r', 'd', 'e', 'n', '.', 'e', 'x', 'e', 'c', 'p', 'o', 'l', 'i', 'c',
	'y', '.', 'r', 'u', 'l', 'e', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns a hex BLAKE3 digest over the policy's rules in
// priority order. The fingerprint is recorded in every rollout's
// session metadata so each approval decision in the audit trail is
// attributable to the exact ruleset that produced it.
func (p *Policy) Fingerprint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	hasher, err := blake3.NewKeyed(rulesDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a key that is not 32 bytes.
		panic("execpolicy: bad fingerprint domain key: " + err.Error())
	}
	encoder := json.NewEncoder(hasher)
	for i := range p.rules {
		// Encode rules one at a time; json.Encoder output is
		// deterministic for a fixed struct shape.
		if err := encoder.Encode(&p.rules[i]); err != nil {
			panic("execpolicy: encoding rule for fingerprint: " + err.Error())
		}
	}
	var digest [32]byte
	if _, err := hasher.Digest().Read(digest[:]); err != nil {
		panic("execpolicy: reading fingerprint digest: " + err.Error())
	}
	return hex.EncodeToString(digest[:])
}
