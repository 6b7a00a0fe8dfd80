// Package idempotency derives deterministic keys for outbound requests.
package idempotency

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Key returns a hex blake2b-256 digest of scope and id. The same pair always
// yields the same key.
func Key(scope, id string) string {
	sum := blake2b.Sum256([]byte("offramp/" + scope + "/" + id))
	return hex.EncodeToString(sum[:])
}
