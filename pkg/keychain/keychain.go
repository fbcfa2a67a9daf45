// Package keychain implements the key-derivation chain shared between relay
// clients and the server: raw room key -> session token -> verification hash.
// The server only ever sees the last two links, so it can verify that a
// client knows the token without being able to recover the raw key.
package keychain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenPurpose  = "relay/room-token/v1"
	verifyPurpose = "relay/room-verify/v1"

	// RoomKeySize is the size in bytes of a freshly generated raw room key.
	RoomKeySize = 32

	tokenSize = 32
)

// NewRoomKey generates a raw room key. The key never leaves the client; it
// is shared out of band with the people invited to the room.
func NewRoomKey() ([]byte, error) {
	key := make([]byte, RoomKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating room key: %w", err)
	}
	return key, nil
}

// DeriveToken derives the hex-encoded session token presented at connection
// time from the raw room key.
func DeriveToken(rawKey []byte) (string, error) {
	if len(rawKey) == 0 {
		return "", fmt.Errorf("empty room key")
	}
	r := hkdf.New(sha256.New, rawKey, nil, []byte(tokenPurpose))
	token := make([]byte, tokenSize)
	if _, err := io.ReadFull(r, token); err != nil {
		return "", fmt.Errorf("deriving token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// Tag computes the verification tag for a decoded session token: an
// HMAC-SHA256 keyed with the token over a fixed purpose string. The server
// stores the hex form of this tag and recomputes it at admission time.
func Tag(token []byte) []byte {
	mac := hmac.New(sha256.New, token)
	mac.Write([]byte(verifyPurpose))
	return mac.Sum(nil)
}

// VerificationHash computes the hex-encoded hash a room creator submits to
// the control endpoint for a hex-encoded session token.
func VerificationHash(tokenHex string) (string, error) {
	token, err := hex.DecodeString(tokenHex)
	if err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	if len(token) == 0 {
		return "", fmt.Errorf("empty token")
	}
	return hex.EncodeToString(Tag(token)), nil
}
