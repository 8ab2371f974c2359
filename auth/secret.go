package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// secretAlphabet is the alphanumeric alphabet for opaque tokens.
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// secretLength is the length of generated verification and reset tokens.
// At 62^32 the keyspace makes collisions against existing rows negligible,
// so they are not checked.
const secretLength = 32

// GenerateSecret produces an opaque alphanumeric token from a
// cryptographically strong random source.
func GenerateSecret() (string, error) {
	alphabetSize := big.NewInt(int64(len(secretAlphabet)))
	out := make([]byte, secretLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = secretAlphabet[n.Int64()]
	}
	return string(out), nil
}
