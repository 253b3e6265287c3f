package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes gives 40 hex characters per key, the shape the existing game
// clients already store and send.
const tokenBytes = 20

// GenerateTokenKey returns a new opaque bearer token key.
//
// The key carries no claims and no expiry — it is only meaningful as a
// lookup into the auth_tokens table, which is what makes logout an actual
// revocation: delete the row and the key is dead everywhere.
func GenerateTokenKey() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating token key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
