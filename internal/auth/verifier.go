// Package auth verifies room credentials without ever holding the room
// secret: the server stores only a verification hash and compares it against
// a tag recomputed from the client-supplied session token.
package auth

import (
	"crypto/subtle"
	"encoding/hex"

	"cipher-relay/pkg/keychain"
)

// Verify reports whether token proves knowledge of the credential behind
// storedHash. Both arguments are hex strings: the token as submitted at
// connection time, the hash as submitted at room creation. Any malformed
// input, decode failure, or length mismatch yields false; Verify never
// panics. The comparison is constant-time over the full tag length.
func Verify(token, storedHash string) bool {
	if token == "" || storedHash == "" {
		return false
	}
	key, err := hex.DecodeString(token)
	if err != nil || len(key) == 0 {
		return false
	}
	want, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	got := keychain.Tag(key)
	if len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
