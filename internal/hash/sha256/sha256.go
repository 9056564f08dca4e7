// Package sha256 derives stable, filesystem-safe names from cache keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher hashes cache keys with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashKey returns the hex digest of a string key.
func (h *Hasher) HashKey(key string) string {
	return h.Hash([]byte(key))
}
