// Package idgen generates opaque, unguessable identifiers.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a 128-bit identifier hex-encoded to 32 characters, used for
// both debug session IDs and Lang-B temp source file names.
func New() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand.Read failing means the OS entropy source is broken
	}
	return hex.EncodeToString(buf)
}
