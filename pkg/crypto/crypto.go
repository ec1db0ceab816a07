package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// MinTokenBytes is the smallest token size accepted by GenerateToken (256 bits).
const MinTokenBytes = 32

// GenerateToken returns a random URL-safe token of the requested byte length.
// Lengths below MinTokenBytes are rejected.
func GenerateToken(length int) (string, error) {
	if length < MinTokenBytes {
		return "", fmt.Errorf("crypto: token length %d below minimum %d bytes", length, MinTokenBytes)
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex encoded SHA-256 digest stored in place of a bearer token.
func HashToken(token string) string {
	checksum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(checksum[:])
}

// TokenMatches compares a presented token against a stored digest in constant time.
func TokenMatches(token, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(digest)) == 1
}
