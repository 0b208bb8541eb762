package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns an opaque, externally addressable job identifier.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "toonforge-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
