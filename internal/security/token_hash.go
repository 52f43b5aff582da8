package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns a SHA-256 hash of an opaque token string, hex-encoded.
// Used for storing refresh tokens and MFA challenge references without
// storing the raw value.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
