// Package sha256 fingerprints cleaned documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

// Hasher implements archive.Hasher using SHA-256.
type Hasher struct{}

var _ archive.Hasher = (*Hasher)(nil)

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
