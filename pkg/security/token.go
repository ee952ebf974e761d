package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the entropy of an issued bearer token.
const TokenBytes = 32

// ErrInvalidToken signals a token that is not a well-formed bearer token.
var ErrInvalidToken = fmt.Errorf("invalid token")

// GenerateToken returns a URL-safe, unpadded base64 token carrying
// TokenBytes of crypto/rand entropy (43 characters).
func GenerateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex BLAKE2b-256 digest stored in place of token.
func HashToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != TokenBytes {
		return "", ErrInvalidToken
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:]), nil
}

// EqualHash compares two token hashes in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
