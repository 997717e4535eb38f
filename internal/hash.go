package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURL returns the hex encoded sha256 digest of url.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
