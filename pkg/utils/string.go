package utils

import (
	"crypto/rand"
	"math/big"
)

const charset = "abcdefghijkmnpqrstuvwxyz23456789"

// GenerateRandomString returns a URL-safe code without look-alike characters.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
